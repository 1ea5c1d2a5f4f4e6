package main

import (
	"fmt"
	"os"

	"go-image-forensics/internal/logger"

	"github.com/spf13/cobra"
)

var (
	flagJSON     bool
	flagLogLevel string

	version = "1.0.0"
)

// rootCmd is the base command for the inspect CLI
var rootCmd = &cobra.Command{
	Use:           "inspect",
	Short:         "Check images for signs of manipulation",
	Long:          "inspect runs error level analysis and metadata checks on local image files and reports a suspicion score for each.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Keep stdout clean for reports
		logger.Logger.SetOutput(os.Stderr)
		logger.Configure(flagLogLevel)
	},
}

// Execute runs the CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
}
