// Package daemon runs the periodic enforcement loop.
package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CycleRunner is the unit of work the scheduler fires. Implemented by
// usecase.Monitor.
type CycleRunner interface {
	RunCycle(ctx context.Context)
}

// Config holds scheduler configuration.
type Config struct {
	// Interval between enforcement cycles.
	Interval time.Duration
}

// Scheduler fires enforcement cycles at a fixed interval on a single
// goroutine, so cycles never overlap. The first cycle runs immediately
// on Run. A panicking cycle is logged and the loop keeps going; a
// failing cycle must not stop future monitoring.
type Scheduler struct {
	config Config
	runner CycleRunner
	logger *zap.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewScheduler creates a scheduler for the given cycle runner.
func NewScheduler(config Config, runner CycleRunner, logger *zap.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Second
	}
	return &Scheduler{
		config: config,
		runner: runner,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run blocks, driving cycles until Stop is called or ctx is canceled.
// Stopping does not interrupt an in-flight cycle.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	s.logger.Info("scheduler started",
		zap.Duration("interval", s.config.Interval))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", zap.Error(ctx.Err()))
			return
		case <-s.stop:
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// Stop disables future fires. Idempotent; returns immediately without
// waiting for an in-flight cycle.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Done is closed once the loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// runCycle executes one cycle with panic isolation at the cycle
// boundary.
func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("enforcement cycle panicked", zap.Any("panic", r))
		}
	}()

	s.runner.RunCycle(ctx)
}
