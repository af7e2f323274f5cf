package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltlab/electric/internal/config"
	"github.com/voltlab/electric/internal/logging"
)

// Exit codes: callers script against these, keep them stable.
const (
	exitConverged = 0
	exitDiverged  = 1
	exitExhausted = 2
	exitConfig    = 3
)

var rootCmd = &cobra.Command{
	Use:   "electric",
	Short: "Drive an external dynamics engine to a self-consistent electric embedding",
	Long: `electric iterates an external molecular dynamics engine against an
embedding update rule until the induced dipoles stop changing, and can
analyze the resulting probe fields over a trajectory.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfig)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "electric.yaml", "Path to the run configuration file")
	rootCmd.PersistentFlags().StringArray("set", nil, "Override a config value (key=value, repeatable)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig reads the configured file and applies --set overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	sets, _ := cmd.Flags().GetStringArray("set")
	if err := cfg.ApplyOverrides(sets); err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.ParseLevel(cfg.LogLevel))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(exitConfig)
}
