package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lifesignal/backend/internal/config"
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Run one insight computation pass",
	Long:  `Execute the full extraction, correlation and lifecycle pipeline once and print the computation record.`,
	RunE:  runCompute,
}

func runCompute(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := newLogger(cfg)

	engine, closeStore, err := newEngine(cfg, log)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	record, err := engine.RunComputation(context.Background())
	if err != nil {
		return fmt.Errorf("computation failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}
