package backup

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/s3master/internal/domain"
	"github.com/andresuchdata/s3master/internal/settings"
)

// Scheduler periodically starts BackupNew when the configured schedule says
// a run is due.
type Scheduler struct {
	runner   *Runner
	settings *settings.Settings
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(runner *Runner, st *settings.Settings, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{runner: runner, settings: st, interval: interval, now: time.Now}
}

// Check runs a backup if one is due. It returns a nil report when nothing ran.
func (s *Scheduler) Check(ctx context.Context) (*domain.BackupReport, error) {
	bs, err := s.settings.BackupSettings(ctx)
	if err != nil {
		return nil, err
	}
	last, err := s.settings.LastBackup(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !IsDue(bs, last, now) {
		return nil, nil
	}

	// A run that aborted is retried on the next tick.
	report, runErr := s.runner.BackupNew(ctx)
	if runErr == nil {
		if err := s.settings.SetLastBackup(ctx, now); err != nil {
			log.Warn().Err(err).Msg("failed to store last backup time")
		}
	}

	entry := domain.BackupLogEntry{FilePath: "scheduled_backup", Status: domain.BackupStatusSuccess}
	if report != nil {
		entry.RunID = report.RunID
		entry.Message = report.Message
	}
	if runErr != nil {
		entry.Status = domain.BackupStatusFailed
		entry.Message = runErr.Error()
	}
	s.runner.logActivity(ctx, entry)
	return report, runErr
}

// Run checks once immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("backup scheduler started")
	for {
		if report, err := s.Check(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled backup failed")
		} else if report != nil {
			log.Info().Str("run_id", report.RunID).Str("result", report.Message).Msg("scheduled backup finished")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("backup scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}
