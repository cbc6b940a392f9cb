package handlers

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/s3master/internal/service"
)

type FileHandler struct {
	files *service.FileService
}

func NewFileHandler(files *service.FileService) *FileHandler {
	return &FileHandler{files: files}
}

// ListFiles shows one folder level of a bucket. The prefix query parameter
// selects the folder.
func (h *FileHandler) ListFiles(c *gin.Context) {
	listing, err := h.files.ListFiles(c.Request.Context(), c.Param("bucket"), c.Query("prefix"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{
		"bucket": listing.Bucket,
		"prefix": listing.Prefix,
		"items":  listing.Items(),
	})
}

// UploadFile stores the multipart "file" field under the "prefix" field.
func (h *FileHandler) UploadFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "No file uploaded")
		return
	}
	f, err := header.Open()
	if err != nil {
		log.Error().Err(err).Str("filename", header.Filename).Msg("failed to open uploaded file")
		badRequest(c, "Invalid file data")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		log.Error().Err(err).Str("filename", header.Filename).Msg("failed to read uploaded file")
		badRequest(c, "Invalid file data")
		return
	}

	key, err := h.files.UploadFile(c.Request.Context(), c.Param("bucket"), c.PostForm("prefix"), header.Filename, data)
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"message": "File uploaded successfully", "key": key})
}

func (h *FileHandler) DeleteFile(c *gin.Context) {
	if err := h.files.DeleteFile(c.Request.Context(), c.Param("bucket"), c.Query("key")); err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"message": "File deleted successfully"})
}

type createFolderRequest struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
}

func (h *FileHandler) CreateFolder(c *gin.Context) {
	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	key, err := h.files.CreateFolder(c.Request.Context(), c.Param("bucket"), req.Prefix, req.Name)
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"message": "Folder created successfully", "key": key})
}

type renameFileRequest struct {
	OldKey  string `json:"old_key"`
	NewName string `json:"new_name"`
}

func (h *FileHandler) RenameFile(c *gin.Context) {
	var req renameFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	key, err := h.files.RenameFile(c.Request.Context(), c.Param("bucket"), req.OldKey, req.NewName)
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"message": "File renamed successfully", "key": key})
}

func (h *FileHandler) GetFileURL(c *gin.Context) {
	url, err := h.files.FileURL(c.Param("bucket"), c.Query("key"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"url": url})
}
