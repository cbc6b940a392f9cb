package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// S3 client modes.
const (
	ClientModeManual = "manual"
	ClientModeSDK    = "sdk"
)

// Settings store backends.
const (
	SettingsBackendMemory = "memory"
	SettingsBackendRedis  = "redis"
)

type Config struct {
	Server   ServerConfig
	S3       S3Config
	Settings SettingsConfig
	Database DatabaseConfig
	Backup   BackupConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

// S3Config seeds the credential store. Values saved through the admin API
// take precedence once present in the settings store.
type S3Config struct {
	Endpoint        string
	ClientMode      string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

type SettingsConfig struct {
	Backend       string
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type BackupConfig struct {
	UploadsDir    string
	KeyPrefix     string
	Concurrency   int
	MaxAttempts   int
	CheckInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
)

// Load reads .env and the process environment once.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.New()
		v.AutomaticEnv()
		instance = New(v)
	})

	return instance
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 60)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("S3_ENDPOINT", "https://s3.amazonaws.com")
	v.SetDefault("S3_CLIENT_MODE", ClientModeManual)
	v.SetDefault("S3_ACCESS_KEY_ID", "")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_REGION", "us-east-1")

	v.SetDefault("SETTINGS_BACKEND", SettingsBackendMemory)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SETTINGS_KEY_PREFIX", "s3master:")

	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "s3master")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("BACKUP_UPLOADS_DIR", "./data/uploads")
	v.SetDefault("BACKUP_KEY_PREFIX", "wp-content/uploads")
	v.SetDefault("BACKUP_CONCURRENCY", 4)
	v.SetDefault("BACKUP_MAX_ATTEMPTS", 3)
	v.SetDefault("BACKUP_CHECK_INTERVAL", time.Hour)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// New builds a Config from v after applying defaults.
func New(v *viper.Viper) *Config {
	SetDefaults(v)

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		S3: S3Config{
			Endpoint:        v.GetString("S3_ENDPOINT"),
			ClientMode:      strings.ToLower(v.GetString("S3_CLIENT_MODE")),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			Region:          v.GetString("S3_REGION"),
		},
		Settings: SettingsConfig{
			Backend:       strings.ToLower(v.GetString("SETTINGS_BACKEND")),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			KeyPrefix:     v.GetString("SETTINGS_KEY_PREFIX"),
		},
		Database: DatabaseConfig{
			Enabled:  v.GetBool("DB_ENABLED"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Backup: BackupConfig{
			UploadsDir:    v.GetString("BACKUP_UPLOADS_DIR"),
			KeyPrefix:     strings.Trim(v.GetString("BACKUP_KEY_PREFIX"), "/"),
			Concurrency:   v.GetInt("BACKUP_CONCURRENCY"),
			MaxAttempts:   v.GetInt("BACKUP_MAX_ATTEMPTS"),
			CheckInterval: v.GetDuration("BACKUP_CHECK_INTERVAL"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	switch c.S3.ClientMode {
	case ClientModeManual, ClientModeSDK:
	default:
		return fmt.Errorf("unknown S3_CLIENT_MODE %q (want %s or %s)", c.S3.ClientMode, ClientModeManual, ClientModeSDK)
	}
	switch c.Settings.Backend {
	case SettingsBackendMemory, SettingsBackendRedis:
	default:
		return fmt.Errorf("unknown SETTINGS_BACKEND %q (want %s or %s)", c.Settings.Backend, SettingsBackendMemory, SettingsBackendRedis)
	}
	if c.S3.Endpoint == "" {
		return fmt.Errorf("S3_ENDPOINT must not be empty")
	}
	if c.Backup.Concurrency < 1 {
		return fmt.Errorf("BACKUP_CONCURRENCY must be at least 1, got %d", c.Backup.Concurrency)
	}
	if c.Backup.MaxAttempts < 1 {
		return fmt.Errorf("BACKUP_MAX_ATTEMPTS must be at least 1, got %d", c.Backup.MaxAttempts)
	}
	if c.Backup.CheckInterval <= 0 {
		return fmt.Errorf("BACKUP_CHECK_INTERVAL must be positive")
	}
	return nil
}
