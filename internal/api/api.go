package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/s3master/internal/api/handlers"
	"github.com/andresuchdata/s3master/internal/api/middleware"
	"github.com/andresuchdata/s3master/internal/backup"
	"github.com/andresuchdata/s3master/internal/credentials"
	"github.com/andresuchdata/s3master/internal/service"
	"github.com/andresuchdata/s3master/internal/settings"
)

type Services struct {
	Credentials *credentials.Store
	Settings    *settings.Settings
	Buckets     *service.BucketService
	Files       *service.FileService
	Backup      *backup.Runner
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")
	if services == nil {
		return router
	}

	if services.Credentials != nil && services.Buckets != nil {
		settingsHandler := handlers.NewSettingsHandler(services.Credentials, services.Buckets)
		apiGroup.GET("/regions", settingsHandler.GetRegions)
		apiGroup.POST("/connection/test", settingsHandler.TestConnection)
		settingsGroup := apiGroup.Group("/settings")
		{
			settingsGroup.GET("", settingsHandler.GetSettings)
			settingsGroup.PUT("", settingsHandler.UpdateSettings)
			settingsGroup.GET("/default-bucket", settingsHandler.GetDefaultBucket)
			settingsGroup.PUT("/default-bucket", settingsHandler.SetDefaultBucket)
		}
	}

	bucketGroup := apiGroup.Group("/buckets")
	if services.Buckets != nil {
		bucketHandler := handlers.NewBucketHandler(services.Buckets)
		bucketGroup.GET("", bucketHandler.ListBuckets)
		bucketGroup.POST("", bucketHandler.CreateBucket)
		bucketGroup.DELETE("/:bucket", bucketHandler.DeleteBucket)
		bucketGroup.GET("/:bucket/stats", bucketHandler.GetStats)
		bucketGroup.GET("/:bucket/location", bucketHandler.GetLocation)
		bucketGroup.GET("/:bucket/exists", bucketHandler.VerifyBucket)
	}

	if services.Files != nil {
		fileHandler := handlers.NewFileHandler(services.Files)
		fileGroup := bucketGroup.Group("/:bucket/files")
		{
			fileGroup.GET("", fileHandler.ListFiles)
			fileGroup.POST("", fileHandler.UploadFile)
			fileGroup.DELETE("", fileHandler.DeleteFile)
			fileGroup.POST("/rename", fileHandler.RenameFile)
			fileGroup.GET("/url", fileHandler.GetFileURL)
		}
		bucketGroup.POST("/:bucket/folders", fileHandler.CreateFolder)
	}

	if services.Backup != nil && services.Settings != nil {
		backupHandler := handlers.NewBackupHandler(services.Backup, services.Settings)
		backupGroup := apiGroup.Group("/backup")
		{
			backupGroup.POST("/run", backupHandler.RunBackup)
			backupGroup.POST("/run-new", backupHandler.RunNewBackup)
			backupGroup.POST("/file", backupHandler.BackupFile)
			backupGroup.GET("/stats", backupHandler.GetStats)
			backupGroup.DELETE("/history", backupHandler.ClearHistory)
			backupGroup.GET("/settings", backupHandler.GetSettings)
			backupGroup.PUT("/settings", backupHandler.UpdateSettings)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
