package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fklub/mpledger/internal/config"
)

const export = "Event;Amount;Date and time;Customer name;Comment;MyShop-Number\n" +
	"Transfer;285,00;2021-03-06T06:00:00;;;90601\n" +
	"Payment;200,00;2021-03-05T12:01:00;Jane Doe;tilmeld jdoe;90601\n" +
	"Retainable;-3,00;2021-03-05T12:01:00;;;90601\n" +
	"Payment;25,00;2021-03-05T11:00:00;Kiosk;;12345\n" +
	"Payment;100,00;2021-03-05T09:15:00;John Roe;;90601\n" +
	"Retainable;-2,00;2021-03-05T09:15:00;;;90601\n" +
	"Transfer;49,00;2021-03-05T06:00:00;;;90601\n" +
	"Payment;50,00;2021-03-04T10:00:00;Anna;hej;90601\n" +
	"Retainable;-1,00;2021-03-04T10:00:00;;;90601\n"

// resetFlags restores every flag to its default so commands can be run
// repeatedly within one test binary.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfgFile, verbose = "", false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(export), 0644))
	return path
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mpledger\n")
	assert.Contains(t, out, "Version:    dev")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mpledger.yaml")

	out, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default configuration to "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "90601", cfg.Gateway.MerchantNumber)

	_, _, err = execute(t, "config", "init", path)
	assert.ErrorIs(t, err, config.ErrExists)

	_, _, err = execute(t, "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestHolidays(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("calendar:\n  extra_closures: [\"2021-03-08\"]\n"), 0644))

	out, _, err := execute(t, "holidays", "2021", "--config", cfgPath)
	require.NoError(t, err)

	assert.Contains(t, out, "2021-03-08")
	assert.Contains(t, out, "2021-05-14")
	assert.Contains(t, out, "Kristi himmelfartsdag")
	assert.Contains(t, out, "bank closure")
	// Saturdays are closed anyway.
	assert.NotContains(t, out, "2021-12-25")
	assert.NotContains(t, out, "2021-06-05")

	_, _, err = execute(t, "holidays", "abc")
	assert.ErrorContains(t, err, "invalid year")
}

func TestConvert(t *testing.T) {
	input := writeExport(t)
	outDir := filepath.Join(t.TempDir(), "out")

	out, logs, err := execute(t, "convert", input, "123", "--output", outDir, "--format", "pdf,xlsx")
	require.NoError(t, err)

	assert.Contains(t, out, "Wrote 2 appendices (123-124), 7 journal rows, 0 warning(s)")
	assert.FileExists(t, filepath.Join(outDir, "123-124.csv"))
	assert.FileExists(t, filepath.Join(outDir, "123-124", "123.pdf"))
	assert.FileExists(t, filepath.Join(outDir, "123-124.xlsx"))
	assert.Contains(t, logs, "Done writing journal")
	assert.NotContains(t, logs, "Parsed export")
}

func TestConvert_Verbose(t *testing.T) {
	_, logs, err := execute(t, "convert", writeExport(t), "1", "-o", t.TempDir(), "-v")
	require.NoError(t, err)
	assert.Contains(t, logs, "Parsed export")
}

func TestConvert_MerchantOverride(t *testing.T) {
	outDir := t.TempDir()

	out, _, err := execute(t, "convert", writeExport(t), "7", "-n", "12345", "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 1 appendices (7-7)")

	journal, err := os.ReadFile(filepath.Join(outDir, "7-7.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(journal), "7;08-03-2021;MP fra 05-03;55000;25,00;")
}

func TestConvert_NoTransactions(t *testing.T) {
	out, _, err := execute(t, "convert", writeExport(t), "1", "-n", "99999", "-o", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No valid transactions")
}

func TestConvert_BadArguments(t *testing.T) {
	_, _, err := execute(t, "convert", "export.csv", "zero")
	assert.ErrorContains(t, err, "appendix-start must be a positive number")

	_, _, err = execute(t, "convert", "export.csv")
	assert.Error(t, err)

	_, _, err = execute(t, "convert", "export.csv", "1", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
