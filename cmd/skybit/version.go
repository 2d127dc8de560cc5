package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/skybit/internal/version"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Display the version, build time, git commit and Go version of Skybit.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "Skybit - scheduled AI agent tasks")
		fmt.Fprintln(cmd.OutOrStdout(), version.Summary())
	},
}
