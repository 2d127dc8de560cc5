package workers

import (
	"context"
	"sync"

	"github.com/aatumaykin/skybit/internal/logger"
)

// Pool manages a fixed set of goroutine workers.
type Pool struct {
	queue   chan Job
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *logger.Logger
	prom    *Metrics

	mu       sync.Mutex
	stopped  bool
	inflight map[string]struct{}
	metrics  PoolMetrics
	onResult func(Result)
}

// Option configures a Pool.
type Option func(*Pool)

// WithMetrics records job outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pool) { p.prom = m }
}

// WithResultHook calls fn after every job.
func WithResultHook(fn func(Result)) Option {
	return func(p *Pool) { p.onResult = fn }
}

// NewPool creates a pool. Non-positive sizes fall back to the defaults.
func NewPool(workers, queueSize int, log *logger.Logger, opts ...Option) *Pool {
	if workers <= 0 {
		workers = DefaultPoolSize
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:    make(chan Job, queueSize),
		workers:  workers,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log,
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers.
func (p *Pool) Start() {
	p.logger.Info("starting worker pool",
		logger.Field{Key: "workers", Value: p.workers},
		logger.Field{Key: "queue_size", Value: cap(p.queue)})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues job, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	if err := p.reserve(job.ID); err != nil {
		return err
	}

	select {
	case p.queue <- job:
		p.logger.DebugCtx(ctx, "job submitted", logger.Field{Key: "job_id", Value: job.ID})
		return nil
	case <-ctx.Done():
		p.release(job.ID)
		return ctx.Err()
	case <-p.ctx.Done():
		p.release(job.ID)
		return ErrPoolStopped
	}
}

// TrySubmit queues job without blocking.
func (p *Pool) TrySubmit(job Job) error {
	if err := p.reserve(job.ID); err != nil {
		return err
	}

	select {
	case p.queue <- job:
		return nil
	default:
		p.release(job.ID)
		return ErrQueueFull
	}
}

// Running reports whether a job with id is queued or executing.
func (p *Pool) Running(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[id]
	return ok
}

func (p *Pool) reserve(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if _, ok := p.inflight[id]; ok {
		return ErrAlreadyRunning
	}
	p.inflight[id] = struct{}{}
	p.metrics.JobsSubmitted++
	return nil
}

func (p *Pool) release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, id)
}

// Stop cancels in-flight jobs and waits for the workers to return.
// Jobs still queued are discarded.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	m := p.Metrics()
	p.logger.Info("worker pool stopped",
		logger.Field{Key: "jobs_submitted", Value: m.JobsSubmitted},
		logger.Field{Key: "jobs_completed", Value: m.JobsCompleted},
		logger.Field{Key: "jobs_failed", Value: m.JobsFailed},
		logger.Field{Key: "discarded", Value: len(p.queue)})
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.workers
}

// QueueSize returns the number of jobs waiting in the queue.
func (p *Pool) QueueSize() int {
	return len(p.queue)
}

// Metrics returns a snapshot of the in-memory counters.
func (p *Pool) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

func (p *Pool) record(res Result) {
	p.mu.Lock()
	if res.Error != nil {
		p.metrics.JobsFailed++
	} else {
		p.metrics.JobsCompleted++
	}
	p.metrics.TotalDuration += res.Duration
	delete(p.inflight, res.JobID)
	p.mu.Unlock()

	status := StatusSuccess
	if res.Error != nil {
		status = StatusFailed
	}
	p.prom.ObserveRun(status, res.Duration)
}
