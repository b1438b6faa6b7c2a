package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kroma-labs/sqlshadow/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sqlshadow-demo",
	Short: "Exercise sqlshadow against an embedded SQLite database",
	Long: `sqlshadow-demo drives a users table through an instrumented pool and exposes
the execution log, counters and slow-query threshold over HTTP.

Without --config the built-in defaults are used.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
}

// loadConfig loads cfgFile, or the defaults when it is empty.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		cfg := config.Default()
		cfg.Database.System = "sqlite"
		return cfg, nil
	}
	return config.Load(cfgFile)
}
