package repository

import (
	"context"
	"sync"
	"time"

	"github.com/andresuchdata/s3master/internal/domain"
)

// MemoryBackupRepository is a BackupRepository for single-process use and
// tests.
type MemoryBackupRepository struct {
	mu       sync.RWMutex
	records  map[string]domain.BackupRecord
	activity []domain.BackupLogEntry
	nextID   int64
}

func NewMemoryBackupRepository() *MemoryBackupRepository {
	return &MemoryBackupRepository{records: make(map[string]domain.BackupRecord)}
}

func (r *MemoryBackupRepository) IsBackedUp(_ context.Context, filePath string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[filePath]
	return ok, nil
}

func (r *MemoryBackupRepository) BackedUpPaths(_ context.Context) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make(map[string]struct{}, len(r.records))
	for p := range r.records {
		paths[p] = struct{}{}
	}
	return paths, nil
}

func (r *MemoryBackupRepository) RecordBackup(_ context.Context, rec domain.BackupRecord) error {
	if rec.BackedUpAt.IsZero() {
		rec.BackedUpAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.FilePath] = rec
	return nil
}

func (r *MemoryBackupRepository) LogActivity(_ context.Context, entry domain.BackupLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	r.activity = append(r.activity, entry)
	if over := len(r.activity) - MaxActivityEntries; over > 0 {
		r.activity = append([]domain.BackupLogEntry(nil), r.activity[over:]...)
	}
	return nil
}

// RecentActivity returns up to limit entries, newest first.
func (r *MemoryBackupRepository) RecentActivity(_ context.Context, limit int) ([]domain.BackupLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.activity) {
		limit = len(r.activity)
	}
	out := make([]domain.BackupLogEntry, 0, limit)
	for i := len(r.activity) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.activity[i])
	}
	return out, nil
}

func (r *MemoryBackupRepository) Totals(_ context.Context) (domain.BackupTotals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var t domain.BackupTotals
	for _, rec := range r.records {
		t.Files++
		t.Bytes += rec.FileSize
	}
	return t, nil
}

func (r *MemoryBackupRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]domain.BackupRecord)
	r.activity = nil
	return nil
}

var _ BackupRepository = (*MemoryBackupRepository)(nil)
