// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const purgeTimeout = 5 * time.Minute

// Purger removes stored uploads created before a cutoff.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	purger    Purger
	schedule  string
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewScheduler creates a scheduler that purges uploads older than retention
// on the given cron schedule (standard 5-field format or descriptors such as
// "@hourly").
func NewScheduler(purger Purger, schedule string, retention time.Duration, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		purger:    purger,
		schedule:  schedule,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.purgeUploads); err != nil {
		return fmt.Errorf("failed to schedule upload purge %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("purge_schedule", s.schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow runs the upload purge synchronously and returns how many files
// were removed.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	return s.purge(ctx)
}

func (s *Scheduler) purgeUploads() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	if _, err := s.purge(ctx); err != nil {
		s.logger.Error("failed to purge uploads", slog.Any("error", err))
	}
}

func (s *Scheduler) purge(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	purged, err := s.purger.Purge(ctx, cutoff)
	if err != nil {
		return purged, err
	}

	s.logger.Info("upload purge completed",
		slog.Int("files_purged", purged),
		slog.Time("cutoff", cutoff),
	)
	return purged, nil
}
