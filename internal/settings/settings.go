package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/s3master/internal/domain"
	"github.com/andresuchdata/s3master/internal/storage"
)

const (
	optionCredentials    = "credentials"
	optionDefaultBucket  = "default_bucket"
	optionBackupSettings = "backup_settings"
	optionLastBackup     = "last_backup"
)

// DefaultBackupSettings is returned until an operator saves their own.
var DefaultBackupSettings = domain.BackupSettings{
	AutoBackup:  false,
	Schedule:    "hourly",
	CustomHours: 1,
}

// Settings gives typed access to the options kept in an OptionStore.
type Settings struct {
	store OptionStore
}

func New(store OptionStore) *Settings {
	return &Settings{store: store}
}

// Credentials returns the saved credentials, if any.
func (s *Settings) Credentials(ctx context.Context) (storage.Credentials, bool, error) {
	var c storage.Credentials
	ok, err := s.getJSON(ctx, optionCredentials, &c)
	return c, ok, err
}

// SaveCredentials stores c.
func (s *Settings) SaveCredentials(ctx context.Context, c storage.Credentials) error {
	return s.setJSON(ctx, optionCredentials, c)
}

// DefaultBucket returns the bucket backups and uploads target by default.
func (s *Settings) DefaultBucket(ctx context.Context) (string, error) {
	v, _, err := s.store.Get(ctx, optionDefaultBucket)
	return v, err
}

func (s *Settings) SetDefaultBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		return s.store.Delete(ctx, optionDefaultBucket)
	}
	return s.store.Set(ctx, optionDefaultBucket, bucket)
}

// BackupSettings returns the saved schedule or DefaultBackupSettings.
func (s *Settings) BackupSettings(ctx context.Context) (domain.BackupSettings, error) {
	bs := DefaultBackupSettings
	if _, err := s.getJSON(ctx, optionBackupSettings, &bs); err != nil {
		return DefaultBackupSettings, err
	}
	return bs, nil
}

func (s *Settings) SaveBackupSettings(ctx context.Context, bs domain.BackupSettings) error {
	return s.setJSON(ctx, optionBackupSettings, bs)
}

// LastBackup returns the time of the last scheduled run, or the zero time.
func (s *Settings) LastBackup(ctx context.Context) (time.Time, error) {
	v, ok, err := s.store.Get(ctx, optionLastBackup)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", optionLastBackup, err)
	}
	return t, nil
}

func (s *Settings) SetLastBackup(ctx context.Context, t time.Time) error {
	return s.store.Set(ctx, optionLastBackup, t.UTC().Format(time.RFC3339))
}

// ClearLastBackup forgets the last scheduled run.
func (s *Settings) ClearLastBackup(ctx context.Context) error {
	return s.store.Delete(ctx, optionLastBackup)
}

// Reset removes every stored option.
func (s *Settings) Reset(ctx context.Context) error {
	return s.store.Reset(ctx)
}

func (s *Settings) getJSON(ctx context.Context, name string, v any) (bool, error) {
	raw, ok, err := s.store.Get(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (s *Settings) setJSON(ctx context.Context, name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.store.Set(ctx, name, string(payload))
}
