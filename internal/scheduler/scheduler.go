// Package scheduler invokes the sync entry points on a cron cadence
// evaluated in the reference timezone.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/trogers1052/market-sync/internal/ingest"
)

// Runner is the pair of run-level entry points the scheduler triggers
type Runner interface {
	SyncAll(ctx context.Context) (*ingest.RunSummary, error)
	SyncNewsAll(ctx context.Context) (*ingest.RunSummary, error)
}

// Scheduler wraps a cron instance bound to one location
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	loc    *time.Location
	logger arbor.ILogger
	ctx    context.Context
}

// New creates a scheduler. Jobs that are still running when their next
// tick fires are skipped.
func New(runner Runner, loc *time.Location, logger arbor.ILogger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		runner: runner,
		loc:    loc,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Register adds the price and news jobs. An empty expression disables that job.
func (s *Scheduler) Register(pricesExpr, newsExpr string) error {
	jobs := []struct {
		name string
		expr string
		run  func(context.Context) (*ingest.RunSummary, error)
	}{
		{ingest.RunPrices, pricesExpr, s.runner.SyncAll},
		{ingest.RunNews, newsExpr, s.runner.SyncNewsAll},
	}

	for _, job := range jobs {
		if job.expr == "" {
			continue
		}
		next, err := NextRun(job.expr, time.Now(), s.loc)
		if err != nil {
			return fmt.Errorf("invalid %s schedule: %w", job.name, err)
		}
		if _, err := s.cron.AddFunc(job.expr, s.job(job.name, job.run)); err != nil {
			return fmt.Errorf("failed to add %s job: %w", job.name, err)
		}
		s.logger.Info().
			Str("job", job.name).
			Str("cron_expr", job.expr).
			Str("next_run", next.Format(time.RFC3339)).
			Msg("Scheduled sync job")
	}
	return nil
}

func (s *Scheduler) job(name string, run func(context.Context) (*ingest.RunSummary, error)) func() {
	return func() {
		summary, err := run(s.ctx)
		switch {
		case errors.Is(err, ingest.ErrRunInProgress):
			s.logger.Warn().Str("job", name).Msg("Skipped scheduled run, another run holds the lock")
		case err != nil:
			s.logger.Error().Err(err).Str("job", name).Msg("Scheduled run failed")
		default:
			s.logger.Info().
				Str("job", name).
				Str("run_id", summary.RunID).
				Int("done", summary.Count(ingest.StateDone)).
				Int("failed", summary.Count(ingest.StateFailed)).
				Msg("Scheduled run finished")
		}
	}
}

// Start runs the cron loop. Jobs receive ctx, so cancelling it aborts a run in flight.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info().Str("timezone", s.loc.String()).Msg("Scheduler started")
}

// Stop halts the cron loop and waits for running jobs to return
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// NextRun returns the first activation of a standard cron expression after from, in loc
func NextRun(expr string, from time.Time, loc *time.Location) (time.Time, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from.In(loc)), nil
}
