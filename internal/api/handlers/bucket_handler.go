package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/s3master/internal/service"
)

type BucketHandler struct {
	buckets *service.BucketService
}

func NewBucketHandler(buckets *service.BucketService) *BucketHandler {
	return &BucketHandler{buckets: buckets}
}

// ListBuckets returns every bucket visible to the current credentials.
func (h *BucketHandler) ListBuckets(c *gin.Context) {
	buckets, err := h.buckets.ListBuckets(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, buckets)
}

type createBucketRequest struct {
	Name   string `json:"name"`
	Region string `json:"region"`
}

func (h *BucketHandler) CreateBucket(c *gin.Context) {
	var req createBucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.buckets.CreateBucket(c.Request.Context(), req.Name, req.Region); err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"message": "Bucket created successfully"})
}

func (h *BucketHandler) DeleteBucket(c *gin.Context) {
	if err := h.buckets.DeleteBucket(c.Request.Context(), c.Param("bucket")); err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"message": "Bucket deleted successfully"})
}

func (h *BucketHandler) GetStats(c *gin.Context) {
	stats, err := h.buckets.BucketStats(c.Request.Context(), c.Param("bucket"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, stats)
}

func (h *BucketHandler) GetLocation(c *gin.Context) {
	region, err := h.buckets.BucketLocation(c.Request.Context(), c.Param("bucket"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"bucket": c.Param("bucket"), "region": region})
}

// VerifyBucket reports whether the bucket is visible to the current
// credentials.
func (h *BucketHandler) VerifyBucket(c *gin.Context) {
	exists, err := h.buckets.BucketExists(c.Request.Context(), c.Param("bucket"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"bucket": c.Param("bucket"), "exists": exists})
}
