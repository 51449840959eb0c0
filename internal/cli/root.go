// Package cli implements the levyd command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/levyledger/levyd/internal/config"
)

var (
	// Global flags
	configFile string
	debug      bool
	verbose    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "levyd",
	Short: "levyd - ledger daemon with classification-dependent transfer levies",
	Long: `levyd maintains a fungible-value ledger whose transfers carry a levy that
depends on how each transfer is classified (transfer, buy or sell). The
accrued levies collect in a treasury and are redistributed per category
through configurable payout plans, optionally converting part of the
proceeds into a secondary asset through an exchange adapter.`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable normally suppressed debug logging")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output to console after startup")
}

// loadConfig reads the configuration and applies the logging flags on top.
// --debug wins over --verbose, which wins over --quiet.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	switch {
	case debug:
		cfg.Log.Level = "debug"
	case verbose:
		cfg.Log.Level = "info"
	case quiet:
		cfg.Log.Level = "error"
	}
	return cfg, nil
}
