// Package runner executes agent tasks and records their outcome.
package runner

import (
	"context"
	"errors"

	"github.com/aatumaykin/skybit/internal/tasks"
)

// ErrGatewayNotConfigured is returned by runs when no agent gateway URL is set.
var ErrGatewayNotConfigured = errors.New("agent gateway not configured")

// Runner executes one run of a task.
type Runner interface {
	Run(ctx context.Context, task tasks.Task) (tasks.RunResult, error)
}

// Unconfigured fails every run with ErrGatewayNotConfigured.
type Unconfigured struct{}

func (Unconfigured) Run(context.Context, tasks.Task) (tasks.RunResult, error) {
	return tasks.RunResult{}, ErrGatewayNotConfigured
}
