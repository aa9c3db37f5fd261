package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lifesignal-api",
	Short: "LifeSignal insight engine",
	Long:  `Correlation-discovery engine and API for time-stamped life-tracking metrics.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; real env vars win either way.
		_ = godotenv.Load()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(computeCmd)
}
