package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/s3master/internal/credentials"
	"github.com/andresuchdata/s3master/internal/service"
	"github.com/andresuchdata/s3master/internal/storage"
)

type SettingsHandler struct {
	creds   *credentials.Store
	buckets *service.BucketService
}

func NewSettingsHandler(creds *credentials.Store, buckets *service.BucketService) *SettingsHandler {
	return &SettingsHandler{creds: creds, buckets: buckets}
}

// GetRegions lists the selectable regions in display order.
func (h *SettingsHandler) GetRegions(c *gin.Context) {
	ok(c, storage.Regions)
}

type credentialsView struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Region          string `json:"region"`
	Configured      bool   `json:"configured"`
	DefaultBucket   string `json:"default_bucket"`
}

// GetSettings returns the current credentials with both keys masked.
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	current := h.creds.Current()
	bucket, err := h.buckets.DefaultBucket(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, credentialsView{
		AccessKeyID:     credentials.Mask(current.AccessKeyID),
		SecretAccessKey: credentials.Mask(current.SecretAccessKey),
		Region:          current.Region,
		Configured:      current.Configured(),
		DefaultBucket:   bucket,
	})
}

type updateCredentialsRequest struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Region          string `json:"region"`
}

// UpdateSettings swaps the credential snapshot used by later requests.
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req updateCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.AccessKeyID) == "" {
		badRequest(c, "Access key ID is required")
		return
	}
	if strings.TrimSpace(req.SecretAccessKey) == "" && h.creds.Current().SecretAccessKey == "" {
		badRequest(c, "Secret access key is required")
		return
	}
	if region := strings.TrimSpace(req.Region); region != "" {
		if _, known := storage.RegionName(region); !known {
			badRequest(c, "Unknown region: "+region)
			return
		}
	}

	if err := h.creds.Update(c.Request.Context(), storage.Credentials{
		AccessKeyID:     req.AccessKeyID,
		SecretAccessKey: req.SecretAccessKey,
		Region:          req.Region,
	}); err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"message": "Settings saved successfully"})
}

// TestConnection lists buckets with the current credentials.
func (h *SettingsHandler) TestConnection(c *gin.Context) {
	n, err := h.buckets.TestConnection(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"message": "Connection successful", "bucket_count": n})
}

func (h *SettingsHandler) GetDefaultBucket(c *gin.Context) {
	bucket, err := h.buckets.DefaultBucket(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"bucket": bucket})
}

type defaultBucketRequest struct {
	Bucket string `json:"bucket"`
}

func (h *SettingsHandler) SetDefaultBucket(c *gin.Context) {
	var req defaultBucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.buckets.SetDefaultBucket(c.Request.Context(), req.Bucket); err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"message": "Default bucket set successfully", "bucket": strings.TrimSpace(req.Bucket)})
}
