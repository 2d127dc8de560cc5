package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/skybit/internal/client"
	"github.com/aatumaykin/skybit/internal/schedule"
	"github.com/aatumaykin/skybit/internal/tasks"
)

// exitInvalid is the exit status for input the core rejects.
const exitInvalid = 2

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "skybit",
	Short: "Skybit - scheduled AI agent tasks",
	Long: `Skybit stores agent tasks, runs them on an interval or cron schedule
through an agent gateway and serves them over a REST API.`,
	Version:      Version,
	SilenceUsage: true,
}

// exitCode maps a command error to a process exit status. Validation
// problems exit 2 so scripts can re-prompt.
func exitCode(err error) int {
	if errors.Is(err, schedule.ErrInvalidSchedule) || errors.Is(err, tasks.ErrInvalidTask) {
		return exitInvalid
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
		return exitInvalid
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tasksCmd)
}
