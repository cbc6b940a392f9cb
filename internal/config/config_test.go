package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()
	cfg := New(viper.New())

	if cfg.Server.Port != "8080" {
		t.Fatalf("unexpected port default: %q", cfg.Server.Port)
	}
	if cfg.S3.Endpoint != "https://s3.amazonaws.com" || cfg.S3.ClientMode != ClientModeManual {
		t.Fatalf("unexpected S3 defaults: %+v", cfg.S3)
	}
	if cfg.S3.Region != "us-east-1" {
		t.Fatalf("unexpected region default: %q", cfg.S3.Region)
	}
	if cfg.Settings.Backend != SettingsBackendMemory {
		t.Fatalf("unexpected settings backend: %q", cfg.Settings.Backend)
	}
	if cfg.Backup.KeyPrefix != "wp-content/uploads" {
		t.Fatalf("unexpected backup prefix: %q", cfg.Backup.KeyPrefix)
	}
	if cfg.Backup.CheckInterval != time.Hour {
		t.Fatalf("unexpected check interval: %v", cfg.Backup.CheckInterval)
	}
	if cfg.Database.Enabled {
		t.Fatal("expected database disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults failed validation: %v", err)
	}
}

func TestNewReadsOverrides(t *testing.T) {
	t.Parallel()
	v := viper.New()
	v.Set("S3_CLIENT_MODE", "SDK")
	v.Set("S3_ACCESS_KEY_ID", "AKID")
	v.Set("BACKUP_KEY_PREFIX", "/media/")
	v.Set("BACKUP_CHECK_INTERVAL", "15m")
	v.Set("DB_ENABLED", true)

	cfg := New(v)
	if cfg.S3.ClientMode != ClientModeSDK || cfg.S3.AccessKeyID != "AKID" {
		t.Fatalf("unexpected S3 config: %+v", cfg.S3)
	}
	if cfg.Backup.KeyPrefix != "media" {
		t.Fatalf("expected trimmed prefix, got %q", cfg.Backup.KeyPrefix)
	}
	if cfg.Backup.CheckInterval != 15*time.Minute {
		t.Fatalf("unexpected interval: %v", cfg.Backup.CheckInterval)
	}
	if !cfg.Database.Enabled {
		t.Fatal("expected database enabled")
	}
	if !strings.Contains(cfg.Database.DSN(), "dbname=s3master") {
		t.Fatalf("unexpected dsn: %q", cfg.Database.DSN())
	}
}

func TestValidateRejectsUnknownModes(t *testing.T) {
	t.Parallel()
	v := viper.New()
	v.Set("S3_CLIENT_MODE", "curl")
	if err := New(v).Validate(); err == nil || !strings.Contains(err.Error(), "S3_CLIENT_MODE") {
		t.Fatalf("expected client mode error, got %v", err)
	}

	v = viper.New()
	v.Set("SETTINGS_BACKEND", "etcd")
	if err := New(v).Validate(); err == nil || !strings.Contains(err.Error(), "SETTINGS_BACKEND") {
		t.Fatalf("expected backend error, got %v", err)
	}

	v = viper.New()
	v.Set("BACKUP_CONCURRENCY", 0)
	if err := New(v).Validate(); err == nil {
		t.Fatal("expected concurrency error")
	}
}
