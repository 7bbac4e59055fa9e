// =============================================================================
// mpledger - Configuration Module
// =============================================================================
//
// This module loads the run configuration. Values are layered in the usual
// viper order:
//
//   1. Built-in defaults (see Default)
//   2. The YAML config file (config.yaml unless --config is given)
//   3. MPLEDGER_* environment variables, e.g. MPLEDGER_GATEWAY_MERCHANT_NUMBER
//   4. Command-line flags bound by the cmd package
//
// The config file is optional. `mpledger config init` writes the defaults to
// disk as a starting point.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fklub/mpledger/internal/ledger"
	"github.com/fklub/mpledger/internal/money"
	"github.com/fklub/mpledger/internal/registration"
)

// DefaultPath is the config file looked up when no path is given.
const DefaultPath = "config.yaml"

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "MPLEDGER"

// closureLayout is the date layout of extra bank closure days.
const closureLayout = "2006-01-02"

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the complete run configuration.
type Config struct {
	Gateway      GatewayConfig      `mapstructure:"gateway" yaml:"gateway"`
	Registration RegistrationConfig `mapstructure:"registration" yaml:"registration"`
	Ledger       LedgerConfig       `mapstructure:"ledger" yaml:"ledger"`
	Calendar     CalendarConfig     `mapstructure:"calendar" yaml:"calendar"`
	Report       ReportConfig       `mapstructure:"report" yaml:"report"`
	Output       OutputConfig       `mapstructure:"output" yaml:"output"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`

	// Parsed during validation.
	registrationFee money.Amount
	closures        []time.Time
	logLevel        log.Level
	location        *time.Location
}

// GatewayConfig describes the MobilePay export.
type GatewayConfig struct {
	// MerchantNumber is the MyShop number whose events are processed. Rows
	// for other numbers are counted and skipped.
	MerchantNumber string `mapstructure:"merchant_number" yaml:"merchant_number"`

	// Encoding of the input file: "auto" (BOM sniffing, UTF-8 otherwise),
	// "utf-8", "utf-16le", "utf-16be" or "windows-1252".
	Encoding string `mapstructure:"encoding" yaml:"encoding"`

	// Delimiter separates fields. MobilePay uses ";".
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`

	DecimalSeparator string `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	GroupSeparator   string `mapstructure:"group_separator" yaml:"group_separator"`

	// DateLayouts are tried in order when parsing "Date and time".
	DateLayouts []string `mapstructure:"date_layouts" yaml:"date_layouts"`

	// HeaderRow is the 1-based row holding the column names. Rows above it
	// are skipped.
	HeaderRow int `mapstructure:"header_row" yaml:"header_row"`

	// Timezone of the export timestamps, as an IANA name such as
	// "Europe/Copenhagen".
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// RegistrationConfig controls the registration classifier.
type RegistrationConfig struct {
	// Fee is the registration fee as a decimal string, e.g. "200,00".
	Fee string `mapstructure:"fee" yaml:"fee"`

	Keywords        []string `mapstructure:"keywords" yaml:"keywords"`
	MaxEditDistance int      `mapstructure:"max_edit_distance" yaml:"max_edit_distance"`
}

// LedgerConfig controls the journal rows.
type LedgerConfig struct {
	// Profile is "membership" or "sales".
	Profile string `mapstructure:"profile" yaml:"profile"`

	// VoucherRows is "positive", "nonzero" or "always".
	VoucherRows string `mapstructure:"voucher_rows" yaml:"voucher_rows"`

	Accounts AccountsConfig `mapstructure:"accounts" yaml:"accounts"`
}

// AccountsConfig are the account codes in the chart of accounts.
type AccountsConfig struct {
	Bank         string `mapstructure:"bank" yaml:"bank"`
	Voucher      string `mapstructure:"voucher" yaml:"voucher"`
	Registration string `mapstructure:"registration" yaml:"registration"`
	Sales        string `mapstructure:"sales" yaml:"sales"`
	GatewayFees  string `mapstructure:"gateway_fees" yaml:"gateway_fees"`
}

// CalendarConfig adds one-off bank closures to the Danish calendar.
type CalendarConfig struct {
	// ExtraClosures are dates in YYYY-MM-DD form.
	ExtraClosures []string `mapstructure:"extra_closures" yaml:"extra_closures"`
}

// ReportConfig controls the per-batch settlement reports.
type ReportConfig struct {
	// Formats lists the report formats to write: "pdf", "xlsx".
	Formats []string `mapstructure:"formats" yaml:"formats"`

	Title      string `mapstructure:"title" yaml:"title"`
	SalesTitle string `mapstructure:"sales_title" yaml:"sales_title"`

	// Organisation lines printed under the title.
	Organisation []string `mapstructure:"organisation" yaml:"organisation"`

	// VATPercent is used for display only.
	VATPercent int `mapstructure:"vat_percent" yaml:"vat_percent"`
}

// OutputConfig controls where files are written.
type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`

	// SummaryLog enables the run summary file in the output directory.
	SummaryLog bool `mapstructure:"summary_log" yaml:"summary_log"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `mapstructure:"level" yaml:"level"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			MerchantNumber:   "90601",
			Encoding:         "auto",
			Delimiter:        ";",
			DecimalSeparator: ",",
			GroupSeparator:   ".",
			DateLayouts: []string{
				"2006-01-02T15:04:05",
				"2006-01-02 15:04:05",
				"2006-01-02 15:04",
				"02-01-2006 15:04:05",
				"02-01-2006 15:04",
				"02.01.2006 15:04",
			},
			HeaderRow: 1,
			Timezone:  "UTC",
		},
		Registration: RegistrationConfig{
			Fee:             "200,00",
			Keywords:        append([]string(nil), registration.DefaultKeywords...),
			MaxEditDistance: registration.DefaultMaxEditDistance,
		},
		Ledger: LedgerConfig{
			Profile:     string(ledger.ProfileMembership),
			VoucherRows: string(ledger.VoucherPositive),
			Accounts: AccountsConfig{
				Bank:         ledger.DefaultAccounts.Bank,
				Voucher:      ledger.DefaultAccounts.Voucher,
				Registration: ledger.DefaultAccounts.Registration,
				Sales:        ledger.DefaultAccounts.Sales,
				GatewayFees:  ledger.DefaultAccounts.GatewayFees,
			},
		},
		Calendar: CalendarConfig{
			ExtraClosures: []string{},
		},
		Report: ReportConfig{
			Formats:    []string{"pdf"},
			Title:      "MobilePay-indbetalinger",
			SalesTitle: "Salg via MobilePay",
			Organisation: []string{
				"F-Klubben-Institut for Datalogi",
				"CVR: 16427888",
				"https://fklub.dk/",
			},
			VATPercent: 20,
		},
		Output: OutputConfig{
			Directory:  ".",
			SummaryLog: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// setDefaults registers every default with viper. Environment overrides only
// apply to keys viper knows about, so every key is registered.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("gateway.merchant_number", d.Gateway.MerchantNumber)
	v.SetDefault("gateway.encoding", d.Gateway.Encoding)
	v.SetDefault("gateway.delimiter", d.Gateway.Delimiter)
	v.SetDefault("gateway.decimal_separator", d.Gateway.DecimalSeparator)
	v.SetDefault("gateway.group_separator", d.Gateway.GroupSeparator)
	v.SetDefault("gateway.date_layouts", d.Gateway.DateLayouts)
	v.SetDefault("gateway.header_row", d.Gateway.HeaderRow)
	v.SetDefault("gateway.timezone", d.Gateway.Timezone)

	v.SetDefault("registration.fee", d.Registration.Fee)
	v.SetDefault("registration.keywords", d.Registration.Keywords)
	v.SetDefault("registration.max_edit_distance", d.Registration.MaxEditDistance)

	v.SetDefault("ledger.profile", d.Ledger.Profile)
	v.SetDefault("ledger.voucher_rows", d.Ledger.VoucherRows)
	v.SetDefault("ledger.accounts.bank", d.Ledger.Accounts.Bank)
	v.SetDefault("ledger.accounts.voucher", d.Ledger.Accounts.Voucher)
	v.SetDefault("ledger.accounts.registration", d.Ledger.Accounts.Registration)
	v.SetDefault("ledger.accounts.sales", d.Ledger.Accounts.Sales)
	v.SetDefault("ledger.accounts.gateway_fees", d.Ledger.Accounts.GatewayFees)

	v.SetDefault("calendar.extra_closures", d.Calendar.ExtraClosures)

	v.SetDefault("report.formats", d.Report.Formats)
	v.SetDefault("report.title", d.Report.Title)
	v.SetDefault("report.sales_title", d.Report.SalesTitle)
	v.SetDefault("report.organisation", d.Report.Organisation)
	v.SetDefault("report.vat_percent", d.Report.VATPercent)

	v.SetDefault("output.directory", d.Output.Directory)
	v.SetDefault("output.summary_log", d.Output.SummaryLog)

	v.SetDefault("log.level", d.Log.Level)
}

// =============================================================================
// LOADING
// =============================================================================

// New returns a viper instance with defaults and environment overrides set
// up. Callers may bind flags to it before calling LoadFrom.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads the configuration from configPath using a fresh viper instance.
func Load(configPath string) (*Config, error) {
	return LoadFrom(New(), configPath)
}

// LoadFrom reads configPath into v and returns the validated configuration.
//
// An empty configPath means DefaultPath, which may be missing; an explicitly
// given path must exist.
func LoadFrom(v *viper.Viper, configPath string) (*Config, error) {
	v.SetConfigType("yaml")

	switch {
	case configPath != "":
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	default:
		if _, err := os.Stat(DefaultPath); err == nil {
			v.SetConfigFile(DefaultPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration and parses derived values. It must be
// called before the typed accessors are used; Load does so.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Gateway.MerchantNumber) == "" {
		errs = append(errs, errors.New("gateway.merchant_number is required"))
	}
	if len([]rune(c.Gateway.Delimiter)) != 1 {
		errs = append(errs, fmt.Errorf("gateway.delimiter must be a single character, got %q", c.Gateway.Delimiter))
	}
	if !knownEncoding(c.Gateway.Encoding) {
		errs = append(errs, fmt.Errorf("gateway.encoding %q is not supported", c.Gateway.Encoding))
	}
	if c.Gateway.DecimalSeparator == "" || c.Gateway.DecimalSeparator == c.Gateway.GroupSeparator {
		errs = append(errs, errors.New("gateway.decimal_separator must be set and differ from group_separator"))
	}
	if len(c.Gateway.DateLayouts) == 0 {
		errs = append(errs, errors.New("gateway.date_layouts must not be empty"))
	}
	if c.Gateway.HeaderRow < 1 {
		errs = append(errs, fmt.Errorf("gateway.header_row must be at least 1, got %d", c.Gateway.HeaderRow))
	}
	if loc, err := time.LoadLocation(c.Gateway.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("gateway.timezone: %w", err))
	} else {
		c.location = loc
	}

	fee, err := money.Parse(c.Registration.Fee, money.Grouped)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("registration.fee: %w", err))
	case fee.IsNegative():
		errs = append(errs, errors.New("registration.fee must not be negative"))
	default:
		c.registrationFee = fee
	}
	if c.Registration.MaxEditDistance < 0 {
		errs = append(errs, errors.New("registration.max_edit_distance must not be negative"))
	}
	if len(c.Registration.Keywords) == 0 {
		errs = append(errs, errors.New("registration.keywords must not be empty"))
	}

	switch ledger.Profile(c.Ledger.Profile) {
	case ledger.ProfileMembership, ledger.ProfileSales:
	default:
		errs = append(errs, fmt.Errorf("ledger.profile %q must be membership or sales", c.Ledger.Profile))
	}
	switch ledger.VoucherPolicy(c.Ledger.VoucherRows) {
	case ledger.VoucherPositive, ledger.VoucherNonZero, ledger.VoucherAlways:
	default:
		errs = append(errs, fmt.Errorf("ledger.voucher_rows %q must be positive, nonzero or always", c.Ledger.VoucherRows))
	}
	if c.Ledger.Accounts.Bank == "" || c.Ledger.Accounts.GatewayFees == "" {
		errs = append(errs, errors.New("ledger.accounts.bank and ledger.accounts.gateway_fees are required"))
	}

	c.closures = c.closures[:0]
	for _, s := range c.Calendar.ExtraClosures {
		d, err := time.Parse(closureLayout, strings.TrimSpace(s))
		if err != nil {
			errs = append(errs, fmt.Errorf("calendar.extra_closures: %q is not a YYYY-MM-DD date", s))
			continue
		}
		c.closures = append(c.closures, d)
	}

	for _, f := range c.Report.Formats {
		switch strings.ToLower(f) {
		case "pdf", "xlsx":
		default:
			errs = append(errs, fmt.Errorf("report.formats: unknown format %q", f))
		}
	}
	if c.Report.VATPercent < 0 || c.Report.VATPercent > 100 {
		errs = append(errs, fmt.Errorf("report.vat_percent %d out of range", c.Report.VATPercent))
	}

	if c.Output.Directory == "" {
		c.Output.Directory = "."
	}

	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	} else {
		c.logLevel = level
	}

	return errors.Join(errs...)
}

func knownEncoding(name string) bool {
	switch strings.ToLower(name) {
	case "auto", "utf-8", "utf8", "utf-16le", "utf-16be", "windows-1252", "cp1252":
		return true
	}
	return false
}

// =============================================================================
// TYPED ACCESSORS
// =============================================================================

// RegistrationFee is the parsed registration fee.
func (c *Config) RegistrationFee() money.Amount { return c.registrationFee }

// ExtraClosures are the parsed extra bank closure days.
func (c *Config) ExtraClosures() []time.Time { return c.closures }

// Location is the parsed time zone of the export.
func (c *Config) Location() *time.Location { return c.location }

// LogLevel is the parsed log level.
func (c *Config) LogLevel() log.Level { return c.logLevel }

// AmountStyle is the number style of amounts in the input file.
func (c *Config) AmountStyle() money.Style {
	return money.Style{
		DecimalSep: c.Gateway.DecimalSeparator,
		GroupSep:   c.Gateway.GroupSeparator,
		Grouping:   c.Gateway.GroupSeparator != "",
	}
}

// Accounts converts the configured account codes.
func (c *Config) Accounts() ledger.Accounts {
	a := c.Ledger.Accounts
	return ledger.Accounts{
		Bank:         a.Bank,
		Voucher:      a.Voucher,
		Registration: a.Registration,
		Sales:        a.Sales,
		GatewayFees:  a.GatewayFees,
	}
}

// HasReportFormat reports whether the given report format is enabled.
func (c *Config) HasReportFormat(format string) bool {
	for _, f := range c.Report.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// =============================================================================
// WRITING
// =============================================================================

// ErrExists is returned by WriteDefault when the target file already exists.
var ErrExists = errors.New("config file already exists")

// WriteDefault writes the default configuration as YAML to path. An existing
// file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
