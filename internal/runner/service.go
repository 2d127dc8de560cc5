package runner

import (
	"context"
	"errors"
	"time"

	"github.com/aatumaykin/skybit/internal/logger"
	"github.com/aatumaykin/skybit/internal/tasks"
	"github.com/aatumaykin/skybit/internal/workers"
)

// Store is the part of the task registry used to record runs.
type Store interface {
	Get(id string) (tasks.Task, error)
	Update(id string, fn func(*tasks.Task) error) (tasks.Task, error)
	RecordRun(id string, rec tasks.RunRecord) (tasks.Task, error)
}

// Submitter queues jobs.
type Submitter interface {
	Submit(ctx context.Context, job workers.Job) error
}

// Service runs tasks and records the outcome in the store.
type Service struct {
	store   Store
	runner  Runner
	pool    Submitter
	timeout time.Duration
	logger  *logger.Logger
	now     func() time.Time
}

// NewService wires a runner to the store and worker pool. timeout bounds
// each run; zero means no limit.
func NewService(store Store, runner Runner, pool Submitter, timeout time.Duration, log *logger.Logger) *Service {
	if runner == nil {
		runner = Unconfigured{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:   store,
		runner:  runner,
		pool:    pool,
		timeout: timeout,
		logger:  log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch queues a background run of taskID on the worker pool.
func (s *Service) Dispatch(ctx context.Context, taskID string) error {
	if _, err := s.store.Get(taskID); err != nil {
		return err
	}
	if s.pool == nil {
		return errors.New("worker pool not configured")
	}

	return s.pool.Submit(ctx, workers.Job{
		ID:      taskID,
		Timeout: s.timeout,
		Run: func(ctx context.Context) (string, error) {
			task, err := s.Execute(ctx, taskID)
			if err != nil {
				return "", err
			}
			if task.LastResult != nil {
				return task.LastResult.Text, nil
			}
			return "", nil
		},
	})
}

// Execute runs taskID synchronously. The run outcome is always recorded;
// the returned error is the run error, if any.
func (s *Service) Execute(ctx context.Context, taskID string) (tasks.Task, error) {
	task, err := s.store.Update(taskID, func(t *tasks.Task) error {
		t.Steps = nil
		t.ApplyRun(tasks.RunRecord{Status: tasks.StatusRunning})
		return nil
	})
	if err != nil {
		return tasks.Task{}, err
	}

	fields := []logger.Field{
		{Key: "task_id", Value: taskID},
		{Key: "instance_type", Value: task.InstanceType},
		{Key: "model_provider", Value: task.ModelProvider},
	}
	s.logger.InfoCtx(ctx, "executing task", fields...)

	start := time.Now()
	result, runErr := s.runner.Run(ctx, task)
	finished := s.now()
	fields = append(fields, logger.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})

	rec := tasks.RunRecord{At: finished}
	if runErr != nil {
		rec.Status = tasks.StatusFailed
		rec.Error = &tasks.RunError{Message: runErr.Error(), Timestamp: finished}
		s.logger.ErrorCtx(ctx, "task run failed", runErr, fields...)
	} else {
		if result.Timestamp.IsZero() {
			result.Timestamp = finished
		}
		rec.Status = tasks.StatusSuccess
		rec.Result = &result
		rec.Steps = result.Steps
		s.logger.InfoCtx(ctx, "task completed", fields...)
	}

	updated, err := s.store.RecordRun(taskID, rec)
	if err != nil {
		s.logger.ErrorCtx(ctx, "failed to record task run", err, logger.Field{Key: "task_id", Value: taskID})
		if runErr != nil {
			return tasks.Task{}, runErr
		}
		return tasks.Task{}, err
	}
	return updated, runErr
}
