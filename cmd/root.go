// =============================================================================
// mpledger - Root Command
// =============================================================================
//
// COBRA CLI STRUCTURE:
//   rootCmd (mpledger)
//   ├── convertCmd  (mpledger convert <infile> <appendix-start>)
//   ├── holidaysCmd (mpledger holidays [year])
//   ├── configCmd   (mpledger config init [path])
//   └── versionCmd  (mpledger version)
//
// CONFIGURATION:
//   Settings come from, in order of precedence: command flags, MPLEDGER_*
//   environment variables, the config file (--config, default config.yaml
//   when present) and the built-in defaults.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fklub/mpledger/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file. Empty means config.yaml
// in the working directory, if it exists.
var cfgFile string

// verbose enables debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "mpledger",
	Short: "Turn MobilePay settlement exports into bookkeeping journal entries",
	Long: `mpledger reads a MobilePay MyShop export, groups the payments into the
batches MobilePay settles to the bank, and writes a journal CSV for the
Dinero import together with one PDF appendix per batch.

Example Usage:
  mpledger convert export.csv 123          # Appendices numbered from 123
  mpledger convert export.csv 123 -n 12345 # Another MyShop number
  mpledger holidays 2024                   # Bank closing days used for settlement
  mpledger config init                     # Write config.yaml with the defaults`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"Path to the configuration file (default is config.yaml if present)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// flagBindings maps configuration keys to command flags. Flags that a
// command does not define are ignored.
var flagBindings = map[string]string{
	"gateway.merchant_number": "merchant",
	"output.directory":        "output",
	"report.formats":          "format",
}

// loadConfig loads the configuration with the flags of cmd bound on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}
	return config.LoadFrom(v, cfgFile)
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key, name := range flagBindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// newLogger creates the logger for a command.
func newLogger(cmd *cobra.Command, cfg *config.Config) *log.Logger {
	level := cfg.LogLevel()
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "mpledger",
	})
}
