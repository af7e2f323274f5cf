package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voltlab/electric"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of electric",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("electric version %s\n", strings.TrimSpace(electric.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
