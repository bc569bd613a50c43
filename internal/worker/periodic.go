// Package worker runs background jobs owned by a process.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job is one run of a periodic task.
type Job func(ctx context.Context) error

// Periodic runs a job on a fixed interval after a warm-up delay. A tick that
// fires while the previous run is still executing is skipped, not queued.
type Periodic struct {
	name     string
	job      Job
	warmup   time.Duration
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger

	running  atomic.Bool
	skipped  atomic.Int64
	inflight sync.WaitGroup
}

func NewPeriodic(name string, warmup, interval time.Duration, job Job, log *zap.Logger) *Periodic {
	return &Periodic{
		name:     name,
		job:      job,
		warmup:   warmup,
		interval: interval,
		log:      log.With(zap.String("job", name)),
	}
}

// WithTimeout bounds a single run.
func (p *Periodic) WithTimeout(d time.Duration) *Periodic {
	p.timeout = d
	return p
}

// Skipped reports how many ticks were dropped because a run was in flight.
func (p *Periodic) Skipped() int64 {
	return p.skipped.Load()
}

// Run blocks until ctx is cancelled. Runs are started on their own goroutine
// so that a slow run never delays the ticker.
func (p *Periodic) Run(ctx context.Context) {
	p.log.Info("periodic job scheduled",
		zap.Duration("warmup", p.warmup),
		zap.Duration("interval", p.interval),
	)

	warmup := time.NewTimer(p.warmup)
	defer warmup.Stop()

	select {
	case <-ctx.Done():
		return
	case <-warmup.C:
	}

	p.trigger(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("shutdown signal received, stopping periodic job")
			p.inflight.Wait()
			return
		case <-ticker.C:
			p.trigger(ctx)
		}
	}
}

// TryRun starts a run synchronously unless one is already executing. It
// reports whether the job ran.
func (p *Periodic) TryRun(ctx context.Context) bool {
	if !p.running.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		p.log.Warn("previous run still in progress, skipping tick")
		return false
	}
	defer p.running.Store(false)

	p.runOnce(ctx)
	return true
}

func (p *Periodic) trigger(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		p.log.Warn("previous run still in progress, skipping tick")
		return
	}

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer p.running.Store(false)
		p.runOnce(ctx)
	}()
}

func (p *Periodic) runOnce(ctx context.Context) {
	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := p.job(runCtx); err != nil {
		p.log.Error("periodic run failed", zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	p.log.Info("periodic run complete", zap.Duration("took", time.Since(start)))
}
