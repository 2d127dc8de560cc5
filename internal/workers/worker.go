package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/skybit/internal/logger"
)

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.DebugCtx(p.ctx, "worker started", logger.Field{Key: "worker_id", Value: id})

	for {
		select {
		case job := <-p.queue:
			p.process(id, job)
		case <-p.ctx.Done():
			p.logger.DebugCtx(p.ctx, "worker stopping", logger.Field{Key: "worker_id", Value: id})
			return
		}
	}
}

func (p *Pool) process(workerID int, job Job) {
	start := time.Now()

	p.prom.runStarted()
	output, err := p.execute(job)
	p.prom.runFinished()

	res := Result{JobID: job.ID, Output: output, Error: err, Duration: time.Since(start)}
	p.record(res)

	if p.onResult != nil {
		p.onResult(res)
	}

	p.logger.DebugCtx(p.ctx, "job processed",
		logger.Field{Key: "worker_id", Value: workerID},
		logger.Field{Key: "job_id", Value: job.ID},
		logger.Field{Key: "duration_ms", Value: res.Duration.Milliseconds()},
		logger.Field{Key: "failed", Value: err != nil})
}

// execute runs job.Run with panic recovery.
func (p *Pool) execute(job Job) (output string, err error) {
	ctx := p.ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during job execution: %v", r)
			p.logger.ErrorCtx(ctx, "job panic recovered", err, logger.Field{Key: "job_id", Value: job.ID})
		}
	}()

	if job.Run == nil {
		return "", fmt.Errorf("job %s has no run function", job.ID)
	}
	return job.Run(ctx)
}
