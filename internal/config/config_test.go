package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fklub/mpledger/internal/ledger"
	"github.com/fklub/mpledger/internal/money"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
gateway:
  merchant_number: "12345"
  encoding: utf-16le
  header_row: 3
  timezone: Europe/Copenhagen
registration:
  fee: "150,00"
  keywords: [join, signup]
  max_edit_distance: 2
ledger:
  profile: sales
  voucher_rows: nonzero
  accounts:
    sales: "1010"
calendar:
  extra_closures: ["2025-12-29", "2025-12-30"]
report:
  formats: [pdf, xlsx]
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "12345", cfg.Gateway.MerchantNumber)
	assert.Equal(t, "utf-16le", cfg.Gateway.Encoding)
	assert.Equal(t, ";", cfg.Gateway.Delimiter, "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.Gateway.HeaderRow)
	require.NotNil(t, cfg.Location())
	assert.Equal(t, "Europe/Copenhagen", cfg.Location().String())

	assert.Equal(t, money.FromMinor(15000), cfg.RegistrationFee())
	assert.Equal(t, []string{"join", "signup"}, cfg.Registration.Keywords)
	assert.Equal(t, 2, cfg.Registration.MaxEditDistance)

	assert.Equal(t, "sales", cfg.Ledger.Profile)
	assert.Equal(t, "nonzero", cfg.Ledger.VoucherRows)
	accounts := cfg.Accounts()
	assert.Equal(t, "1010", accounts.Sales)
	assert.Equal(t, ledger.DefaultAccounts.Bank, accounts.Bank)

	require.Len(t, cfg.ExtraClosures(), 2)
	assert.Equal(t, time.Date(2025, time.December, 29, 0, 0, 0, 0, time.UTC), cfg.ExtraClosures()[0])

	assert.True(t, cfg.HasReportFormat("XLSX"))
	assert.Equal(t, log.DebugLevel, cfg.LogLevel())
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "90601", cfg.Gateway.MerchantNumber)
	assert.Equal(t, money.FromMinor(20000), cfg.RegistrationFee())
	assert.Equal(t, 1, cfg.Registration.MaxEditDistance)
	assert.Equal(t, "membership", cfg.Ledger.Profile)
	assert.Equal(t, "positive", cfg.Ledger.VoucherRows)
	assert.True(t, cfg.HasReportFormat("pdf"))
	assert.False(t, cfg.HasReportFormat("xlsx"))
	assert.Equal(t, log.InfoLevel, cfg.LogLevel())
	assert.Equal(t, money.Grouped, cfg.AmountStyle())
	assert.Equal(t, 1, cfg.Gateway.HeaderRow)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("MPLEDGER_GATEWAY_MERCHANT_NUMBER", "777")
	t.Setenv("MPLEDGER_REGISTRATION_MAX_EDIT_DISTANCE", "0")

	cfg, err := Load(writeConfig(t, "gateway:\n  merchant_number: \"111\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "777", cfg.Gateway.MerchantNumber)
	assert.Equal(t, 0, cfg.Registration.MaxEditDistance)
}

func TestLoad_InvalidFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"fee", "registration:\n  fee: abc\n", "registration.fee"},
		{"profile", "ledger:\n  profile: barter\n", "ledger.profile"},
		{"voucher rows", "ledger:\n  voucher_rows: sometimes\n", "ledger.voucher_rows"},
		{"delimiter", "gateway:\n  delimiter: ';;'\n", "gateway.delimiter"},
		{"encoding", "gateway:\n  encoding: ebcdic\n", "gateway.encoding"},
		{"closure", "calendar:\n  extra_closures: [29-12-2025]\n", "calendar.extra_closures"},
		{"format", "report:\n  formats: [docx]\n", "report.formats"},
		{"log level", "log:\n  level: loud\n", "log.level"},
		{"distance", "registration:\n  max_edit_distance: -1\n", "max_edit_distance"},
		{"header row", "gateway:\n  header_row: 0\n", "gateway.header_row"},
		{"timezone", "gateway:\n  timezone: Mars/Olympus\n", "gateway.timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.Gateway, cfg.Gateway)
	assert.Equal(t, want.Registration, cfg.Registration)
	assert.Equal(t, want.Ledger, cfg.Ledger)
	assert.Equal(t, want.Report, cfg.Report)
	assert.Equal(t, want.Output, cfg.Output)
	assert.Empty(t, cfg.Calendar.ExtraClosures)

	assert.ErrorIs(t, WriteDefault(path, false), ErrExists)
	assert.NoError(t, WriteDefault(path, true))
}
