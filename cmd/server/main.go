package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/s3master/internal/api"
	"github.com/andresuchdata/s3master/internal/backup"
	"github.com/andresuchdata/s3master/internal/config"
	"github.com/andresuchdata/s3master/internal/credentials"
	"github.com/andresuchdata/s3master/internal/repository"
	"github.com/andresuchdata/s3master/internal/repository/postgres"
	"github.com/andresuchdata/s3master/internal/service"
	"github.com/andresuchdata/s3master/internal/settings"
	"github.com/andresuchdata/s3master/internal/storage"
	"github.com/andresuchdata/s3master/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.SetFormat(cfg.Log.Format)
	logger.SetLevel(cfg.Log.Level)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Settings and credentials
	optionStore, closeStore, err := newOptionStore(cfg.Settings)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize settings store")
	}
	defer closeStore()
	st := settings.New(optionStore)

	initial := storage.Credentials{
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Region:          cfg.S3.Region,
	}
	if saved, ok, err := st.Credentials(ctx); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to read saved credentials, using environment")
	} else if ok {
		initial = saved
	}
	creds := credentials.NewStore(initial, st)
	if !creds.Current().Configured() {
		logger.Log.Warn().Msg("S3 credentials are not configured yet")
	}

	client, err := newObjectStoreClient(cfg.S3, creds)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize object store client")
	}

	// Backup ledger
	repo, closeRepo, err := newBackupRepository(ctx, cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize backup repository")
	}
	defer closeRepo()

	// Initialize services
	buckets := service.NewBucketService(client, creds, st)
	files := service.NewFileService(client, cfg.S3.Endpoint)
	runner := backup.NewRunner(files, repo, st, backup.Options{
		UploadsDir:  cfg.Backup.UploadsDir,
		KeyPrefix:   cfg.Backup.KeyPrefix,
		Concurrency: cfg.Backup.Concurrency,
		MaxAttempts: cfg.Backup.MaxAttempts,
	})
	scheduler := backup.NewScheduler(runner, st, cfg.Backup.CheckInterval)
	go scheduler.Run(ctx)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{
		Credentials: creds,
		Settings:    st,
		Buckets:     buckets,
		Files:       files,
		Backup:      runner,
	}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().
			Str("port", cfg.Server.Port).
			Str("client_mode", cfg.S3.ClientMode).
			Str("endpoint", cfg.S3.Endpoint).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

func newOptionStore(cfg config.SettingsConfig) (settings.OptionStore, func(), error) {
	switch cfg.Backend {
	case config.SettingsBackendRedis:
		store, err := settings.NewRedisStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Log.Warn().Err(err).Msg("Failed to close redis")
			}
		}, nil
	default:
		return settings.NewMemoryStore(), func() {}, nil
	}
}

func newObjectStoreClient(cfg config.S3Config, creds storage.CredentialSource) (storage.ObjectStoreClient, error) {
	switch cfg.ClientMode {
	case config.ClientModeSDK:
		return storage.NewSDKClient(creds, storage.SDKConfig{Endpoint: cfg.Endpoint, UseSSL: true})
	case config.ClientModeManual:
		return storage.NewRESTClient(creds, storage.WithEndpoint(cfg.Endpoint))
	default:
		return nil, fmt.Errorf("unknown client mode %q", cfg.ClientMode)
	}
}

func newBackupRepository(ctx context.Context, cfg config.DatabaseConfig) (repository.BackupRepository, func(), error) {
	if !cfg.Enabled {
		return repository.NewMemoryBackupRepository(), func() {}, nil
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	repo := postgres.NewBackupRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, func() { db.Close() }, nil
}
