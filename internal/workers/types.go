// Package workers runs task executions on a fixed pool of goroutines.
// Jobs are queued, executed with panic recovery, and counted both in
// memory and in prometheus.
package workers

import (
	"context"
	"errors"
	"time"
)

// Job is one unit of work. ID identifies the task being run; the pool
// never holds two jobs with the same ID at once.
type Job struct {
	ID      string
	Run     func(ctx context.Context) (string, error)
	Timeout time.Duration // zero means no per-job deadline
}

// Result is the outcome of a job.
type Result struct {
	JobID    string
	Output   string
	Error    error
	Duration time.Duration
}

// PoolMetrics tracks execution counters for the pool.
type PoolMetrics struct {
	JobsSubmitted uint64
	JobsCompleted uint64
	JobsFailed    uint64
	TotalDuration time.Duration
}

// Run status labels.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

const (
	DefaultPoolSize  = 5
	DefaultQueueSize = 100
)

var (
	// ErrPoolStopped is returned by Submit after Stop.
	ErrPoolStopped = errors.New("worker pool stopped")
	// ErrAlreadyRunning is returned when a job with the same ID is queued or running.
	ErrAlreadyRunning = errors.New("run already in progress")
	// ErrQueueFull is returned by TrySubmit when the queue has no room.
	ErrQueueFull = errors.New("worker queue full")
)
