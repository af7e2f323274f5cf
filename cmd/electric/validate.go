package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltlab/electric"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the run configuration without launching anything",
	Long: `Loads the configuration, applies overrides and verifies both its
semantic constraints and the referenced files on disk.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fail(err)
		}
		if err := cfg.Validate(); err != nil {
			fail(err)
		}
		if err := electric.NewFromConfig(cfg).Validate(); err != nil {
			fail(err)
		}
		fmt.Println("configuration is valid")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
