package repository

import (
	"context"

	"github.com/andresuchdata/s3master/internal/domain"
)

// MaxActivityEntries caps the backup activity log.
const MaxActivityEntries = 100

type BackupRepository interface {
	IsBackedUp(ctx context.Context, filePath string) (bool, error)
	BackedUpPaths(ctx context.Context) (map[string]struct{}, error)
	RecordBackup(ctx context.Context, rec domain.BackupRecord) error
	LogActivity(ctx context.Context, entry domain.BackupLogEntry) error
	RecentActivity(ctx context.Context, limit int) ([]domain.BackupLogEntry, error)
	Totals(ctx context.Context) (domain.BackupTotals, error)
	Clear(ctx context.Context) error
}
