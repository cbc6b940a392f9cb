package settings

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/s3master/internal/config"
	"github.com/andresuchdata/s3master/internal/domain"
	"github.com/andresuchdata/s3master/internal/storage"
)

func TestSettingsCredentialsRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(NewMemoryStore())

	if _, ok, err := s.Credentials(ctx); ok || err != nil {
		t.Fatalf("expected no credentials, got ok=%v err=%v", ok, err)
	}
	want := storage.Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret", Region: "eu-west-2"}
	if err := s.SaveCredentials(ctx, want); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}
	got, ok, err := s.Credentials(ctx)
	if err != nil || !ok || got != want {
		t.Fatalf("unexpected credentials: %+v ok=%v err=%v", got, ok, err)
	}
}

func TestSettingsDefaultBucket(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(NewMemoryStore())

	if err := s.SetDefaultBucket(ctx, "media"); err != nil {
		t.Fatalf("SetDefaultBucket: %v", err)
	}
	if b, _ := s.DefaultBucket(ctx); b != "media" {
		t.Fatalf("unexpected default bucket %q", b)
	}
	if err := s.SetDefaultBucket(ctx, ""); err != nil {
		t.Fatalf("SetDefaultBucket: %v", err)
	}
	if b, _ := s.DefaultBucket(ctx); b != "" {
		t.Fatalf("expected cleared default bucket, got %q", b)
	}
}

func TestSettingsBackupDefaultsAndSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(NewMemoryStore())

	bs, err := s.BackupSettings(ctx)
	if err != nil || bs != DefaultBackupSettings {
		t.Fatalf("expected defaults, got %+v err=%v", bs, err)
	}
	want := domain.BackupSettings{AutoBackup: true, Schedule: "custom", CustomHours: 12}
	if err := s.SaveBackupSettings(ctx, want); err != nil {
		t.Fatalf("SaveBackupSettings: %v", err)
	}
	if bs, _ := s.BackupSettings(ctx); bs != want {
		t.Fatalf("unexpected settings: %+v", bs)
	}
}

func TestSettingsLastBackup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(NewMemoryStore())

	if last, err := s.LastBackup(ctx); err != nil || !last.IsZero() {
		t.Fatalf("expected zero time, got %v err=%v", last, err)
	}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SetLastBackup(ctx, at); err != nil {
		t.Fatalf("SetLastBackup: %v", err)
	}
	if last, _ := s.LastBackup(ctx); !last.Equal(at) {
		t.Fatalf("unexpected last backup %v", last)
	}
	if err := s.ClearLastBackup(ctx); err != nil {
		t.Fatalf("ClearLastBackup: %v", err)
	}
	if last, _ := s.LastBackup(ctx); !last.IsZero() {
		t.Fatalf("expected cleared last backup, got %v", last)
	}
}

func TestSettingsCorruptValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, optionBackupSettings, "{not json")
	s := New(store)
	if _, err := s.BackupSettings(ctx); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestBuildRedisOptions(t *testing.T) {
	t.Parallel()
	opts, err := buildRedisOptions(config.SettingsConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	if err != nil {
		t.Fatalf("buildRedisOptions: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 {
		t.Fatalf("unexpected options: %+v", opts)
	}

	opts, err = buildRedisOptions(config.SettingsConfig{RedisURL: "redis://:pw@redis.internal:6379/3"})
	if err != nil {
		t.Fatalf("buildRedisOptions url: %v", err)
	}
	if opts.Addr != "redis.internal:6379" || opts.Password != "pw" || opts.DB != 3 {
		t.Fatalf("unexpected url options: %+v", opts)
	}

	if _, err := buildRedisOptions(config.SettingsConfig{RedisURL: "http://nope"}); err == nil {
		t.Fatal("expected invalid url error")
	}
}
