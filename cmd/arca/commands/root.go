package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "arca",
	Short: "Arca - daily transit scoring backend",
	Long: `Arca Unified CLI

Transit scoring backend for daily astrological readings.
Charts come from the ephemeris service; scoring, meters and
calibration live here.

Usage:
  go run ./cmd/arca [command]

Examples:
  go run ./cmd/arca api
  go run ./cmd/arca score --datetime 1988-08-02T06:15:00Z --lat 37.57 --lon 126.98
  go run ./cmd/arca calibrate run
  go run ./cmd/arca status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
