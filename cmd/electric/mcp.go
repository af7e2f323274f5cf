package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltlab/electric"
	"github.com/voltlab/electric/pkg/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the driver as an MCP server over stdio, so agent tooling can
validate configurations, launch convergence runs and inspect stored
histories as tools.`,
	Run: func(cmd *cobra.Command, args []string) {
		// The server config only selects the store and log level; run
		// configs are loaded per tool call.
		cfg, err := loadConfig(cmd)
		if err != nil {
			fail(err)
		}
		logger := newLogger(cfg)

		store, closeStore, err := electric.OpenStore(cfg)
		if err != nil {
			fail(err)
		}
		defer closeStore()

		// Keep stdout clean for JSON-RPC.
		log.SetOutput(os.Stderr)

		srv := mcp.NewServer(store, logger)
		logger.Info("mcp server starting on stdio")
		if err := srv.ServeStdio(); err != nil {
			logger.Error("mcp server failed", "err", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
