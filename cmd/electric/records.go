package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltlab/electric"
)

var recordsCmd = &cobra.Command{
	Use:   "records <run-id>",
	Short: "Print the iteration history of a stored run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Only the store section matters here; a full run config is not
		// required to inspect history.
		cfg, err := loadConfig(cmd)
		if err != nil {
			fail(err)
		}

		store, closeStore, err := electric.OpenStore(cfg)
		if err != nil {
			fail(err)
		}
		defer closeStore()

		ctx := context.Background()
		runID := args[0]

		status, err := store.Status(ctx, runID)
		if err != nil {
			fail(err)
		}
		history, err := store.History(ctx, runID)
		if err != nil {
			fail(err)
		}

		out := struct {
			RunID   string `json:"run_id"`
			Status  string `json:"status"`
			History any    `json:"history"`
		}{runID, string(status), history}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fail(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(recordsCmd)
}
