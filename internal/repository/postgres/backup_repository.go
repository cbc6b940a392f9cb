package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/s3master/internal/domain"
	"github.com/andresuchdata/s3master/internal/repository"
)

const backupSchema = `
CREATE TABLE IF NOT EXISTS backup_files (
	file_path    TEXT PRIMARY KEY,
	s3_key       TEXT NOT NULL,
	bucket       TEXT NOT NULL,
	file_size    BIGINT NOT NULL DEFAULT 0,
	backed_up_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS backup_activity (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL DEFAULT '',
	file_path  TEXT NOT NULL,
	s3_key     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

type backupRepository struct {
	db *DB
}

func NewBackupRepository(db *DB) *backupRepository {
	return &backupRepository{db: db}
}

// EnsureSchema creates the ledger tables when missing.
func (r *backupRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, backupSchema); err != nil {
		return fmt.Errorf("failed to create backup schema: %w", err)
	}
	return nil
}

func (r *backupRepository) IsBackedUp(ctx context.Context, filePath string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM backup_files WHERE file_path = $1)`, filePath)
	if err != nil {
		return false, fmt.Errorf("failed to check backup record: %w", err)
	}
	return exists, nil
}

func (r *backupRepository) BackedUpPaths(ctx context.Context) (map[string]struct{}, error) {
	var paths []string
	if err := r.db.SelectContext(ctx, &paths, `SELECT file_path FROM backup_files`); err != nil {
		return nil, fmt.Errorf("failed to list backup records: %w", err)
	}
	out := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		out[p] = struct{}{}
	}
	return out, nil
}

func (r *backupRepository) RecordBackup(ctx context.Context, rec domain.BackupRecord) error {
	if rec.BackedUpAt.IsZero() {
		rec.BackedUpAt = time.Now().UTC()
	}
	query := `
		INSERT INTO backup_files (file_path, s3_key, bucket, file_size, backed_up_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (file_path)
		DO UPDATE SET
			s3_key = EXCLUDED.s3_key,
			bucket = EXCLUDED.bucket,
			file_size = EXCLUDED.file_size,
			backed_up_at = EXCLUDED.backed_up_at
	`
	if _, err := r.db.ExecContext(ctx, query, rec.FilePath, rec.S3Key, rec.Bucket, rec.FileSize, rec.BackedUpAt); err != nil {
		return fmt.Errorf("failed to record backup: %w", err)
	}
	return nil
}

// LogActivity appends entry and trims the log to the newest
// repository.MaxActivityEntries rows in the same transaction.
func (r *backupRepository) LogActivity(ctx context.Context, entry domain.BackupLogEntry) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		insert := `
			INSERT INTO backup_activity (run_id, file_path, s3_key, status, message)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.ExecContext(ctx, insert, entry.RunID, entry.FilePath, entry.S3Key, entry.Status, entry.Message); err != nil {
			return fmt.Errorf("failed to log backup activity: %w", err)
		}

		trim := `
			DELETE FROM backup_activity
			WHERE id NOT IN (
				SELECT id FROM backup_activity ORDER BY id DESC LIMIT $1
			)
		`
		if _, err := tx.ExecContext(ctx, trim, repository.MaxActivityEntries); err != nil {
			return fmt.Errorf("failed to trim backup activity: %w", err)
		}
		return nil
	})
}

func (r *backupRepository) RecentActivity(ctx context.Context, limit int) ([]domain.BackupLogEntry, error) {
	if limit <= 0 || limit > repository.MaxActivityEntries {
		limit = repository.MaxActivityEntries
	}
	query := `
		SELECT id, run_id, file_path, s3_key, status, message, created_at
		FROM backup_activity
		ORDER BY id DESC
		LIMIT $1
	`
	entries := make([]domain.BackupLogEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to read backup activity: %w", err)
	}
	return entries, nil
}

func (r *backupRepository) Totals(ctx context.Context) (domain.BackupTotals, error) {
	var t domain.BackupTotals
	err := r.db.GetContext(ctx, &t, `SELECT COUNT(*) AS files, COALESCE(SUM(file_size), 0) AS bytes FROM backup_files`)
	if err != nil {
		return t, fmt.Errorf("failed to total backups: %w", err)
	}
	return t, nil
}

func (r *backupRepository) Clear(ctx context.Context) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `TRUNCATE backup_files, backup_activity`); err != nil {
			return fmt.Errorf("failed to clear backup ledger: %w", err)
		}
		return nil
	})
}

var _ repository.BackupRepository = (*backupRepository)(nil)
