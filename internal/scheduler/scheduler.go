// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go-careerwatch/internal/pipeline"

	"github.com/robfig/cron/v3"
)

// Runner runs one check over every company.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Summary, error)
}

// Scheduler wraps robfig/cron around a Runner.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string // cron spec, e.g. "@every 6h"
	logger *slog.Logger
}

func New(runner Runner, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		runner: runner,
		spec:   spec,
		logger: logger,
	}
}

// Start registers the job and starts the cron loop. Runs started by the
// schedule stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("⏰ Scheduler started", "spec", s.spec)
	return nil
}

// Stop halts the schedule and waits for a running tick to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("⏰ Scheduler stopped")
}

// Tick runs once. An overlapping tick is skipped, not queued.
func (s *Scheduler) Tick(ctx context.Context) {
	summary, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.logger.Warn("⏭️ Previous run still active, skipping tick")
	case err != nil:
		s.logger.Error("❌ Scheduled run failed", "error", err)
	default:
		s.logger.Info("✅ Scheduled run finished", "status", summary.Status(), "new", summary.TotalNew())
	}
}
