// Package scheduler fires task runs on their schedules.
// It uses robfig/cron/v3: interval schedules become "@every" entries and
// cron schedules are parsed as standard five-field expressions.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aatumaykin/skybit/internal/logger"
	"github.com/aatumaykin/skybit/internal/schedule"
	"github.com/aatumaykin/skybit/internal/tasks"
	"github.com/aatumaykin/skybit/internal/workers"
)

// ErrUnschedulable is returned when a task's schedule cannot be turned
// into a scheduler entry.
var ErrUnschedulable = errors.New("task cannot be scheduled")

// Dispatcher starts a run of a task. It returns workers.ErrAlreadyRunning
// when a run of the same task is still in flight.
type Dispatcher interface {
	Dispatch(ctx context.Context, taskID string) error
}

// Entry is one scheduled task.
type Entry struct {
	TaskID string
	Spec   string
	Next   time.Time
}

// Scheduler manages cron entries keyed by task ID.
type Scheduler struct {
	cron       *cron.Cron
	parser     cron.Parser
	location   *time.Location
	dispatcher Dispatcher
	logger     *logger.Logger
	metrics    *workers.Metrics

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	entries map[string]cron.EntryID
	specs   map[string]string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMetrics reports the number of scheduled tasks to m.
func WithMetrics(m *workers.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a scheduler evaluating cron expressions in loc (UTC when nil).
func New(loc *time.Location, dispatcher Dispatcher, log *logger.Logger, opts ...Option) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronLog := cronLogger{log: log.With(logger.Field{Key: "component", Value: "cron"})}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		),
		parser:     parser,
		location:   loc,
		dispatcher: dispatcher,
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
		entries:    make(map[string]cron.EntryID),
		specs:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SpecFor returns the cron spec used for sched.
func SpecFor(sched schedule.Schedule) (string, error) {
	switch sched.Kind() {
	case schedule.KindInterval:
		if sched.IntervalMinutes() < 1 {
			return "", fmt.Errorf("%w: interval must be at least one minute", ErrUnschedulable)
		}
		return fmt.Sprintf("@every %dm", sched.IntervalMinutes()), nil
	case schedule.KindCron:
		return sched.CronExpression(), nil
	default:
		return "", fmt.Errorf("%w: unknown schedule type %q", ErrUnschedulable, sched.Kind())
	}
}

// Schedule registers task, replacing any existing entry. A disabled task
// is unscheduled instead.
func (s *Scheduler) Schedule(task tasks.Task) error {
	if !task.Active() {
		s.Unschedule(task.ID)
		return nil
	}

	spec, err := SpecFor(task.Schedule)
	if err != nil {
		return err
	}
	parsed, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnschedulable, spec, err)
	}

	id := task.ID
	job := cron.FuncJob(func() { s.fire(id) })

	s.mu.Lock()
	if old, ok := s.entries[id]; ok {
		s.cron.Remove(old)
	}
	s.entries[id] = s.cron.Schedule(parsed, job)
	s.specs[id] = spec
	count := len(s.entries)
	s.mu.Unlock()

	s.metrics.SetScheduled(count)
	s.logger.Info("task scheduled",
		logger.Field{Key: "task_id", Value: id},
		logger.Field{Key: "spec", Value: spec})
	return nil
}

// Unschedule removes the entry for id. It reports whether one existed.
func (s *Scheduler) Unschedule(id string) bool {
	s.mu.Lock()
	entryID, ok := s.entries[id]
	if ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
		delete(s.specs, id)
	}
	count := len(s.entries)
	s.mu.Unlock()

	if ok {
		s.metrics.SetScheduled(count)
		s.logger.Info("task unscheduled", logger.Field{Key: "task_id", Value: id})
	}
	return ok
}

// NextRun returns the next fire time for id, or nil when id is not
// scheduled.
func (s *Scheduler) NextRun(id string) *time.Time {
	s.mu.Lock()
	entryID, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	next := s.nextFor(s.cron.Entry(entryID))
	if next.IsZero() {
		return nil
	}
	return &next
}

// nextFor uses the entry's own next time once the scheduler runs and
// computes it from the schedule before that.
func (s *Scheduler) nextFor(e cron.Entry) time.Time {
	if !e.Next.IsZero() {
		return e.Next
	}
	if e.Schedule == nil {
		return time.Time{}
	}
	return e.Schedule.Next(time.Now().In(s.location))
}

// Entries lists the scheduled tasks sorted by task ID.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	ids := make(map[string]cron.EntryID, len(s.entries))
	specs := make(map[string]string, len(s.specs))
	for id, eid := range s.entries {
		ids[id] = eid
		specs[id] = s.specs[id]
	}
	s.mu.Unlock()

	out := make([]Entry, 0, len(ids))
	for id, eid := range ids {
		out = append(out, Entry{TaskID: id, Spec: specs[id], Next: s.nextFor(s.cron.Entry(eid))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// Start begins firing entries. The scheduler stops when ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	s.cron.Start()
	s.logger.Info("scheduler started",
		logger.Field{Key: "tasks", Value: len(s.entries)},
		logger.Field{Key: "timezone", Value: s.location.String()})

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.ctx.Done():
		}
	}()
	return nil
}

// Stop halts the scheduler and waits for firing callbacks to return.
// Runs already handed to the dispatcher are not waited for.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// IsStarted reports whether the scheduler is running.
func (s *Scheduler) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Scheduler) fire(id string) {
	if s.dispatcher == nil {
		return
	}

	err := s.dispatcher.Dispatch(s.ctx, id)
	switch {
	case err == nil:
		s.logger.Info("scheduled run dispatched", logger.Field{Key: "task_id", Value: id})
	case errors.Is(err, workers.ErrAlreadyRunning):
		s.logger.Warn("skipping scheduled run, previous run still in progress",
			logger.Field{Key: "task_id", Value: id})
	default:
		s.logger.Error("failed to dispatch scheduled run", err, logger.Field{Key: "task_id", Value: id})
	}
}
