package main

import (
	"fmt"

	"github.com/opscart/selfheal-agent/pkg/output"
	"github.com/opscart/selfheal-agent/pkg/storage"
	"github.com/spf13/cobra"
)

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 1 {
		return fmt.Errorf("--limit must be at least 1")
	}
	handler, err := output.New(outputFormat, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// history reads the log even when the running agent has storage off
	store, err := storage.New(storage.Config{Type: "postgres", URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	actions, err := store.ListActions(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	return handler.DisplayActions(cmd.Context(), actions)
}

func runConfig(cmd *cobra.Command, args []string) error {
	handler, err := output.New(outputFormat, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return handler.DisplayConfig(cmd.Context(), cfg)
}
