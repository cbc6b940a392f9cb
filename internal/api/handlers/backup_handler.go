package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/s3master/internal/backup"
	"github.com/andresuchdata/s3master/internal/settings"
)

type BackupHandler struct {
	runner   *backup.Runner
	settings *settings.Settings
}

func NewBackupHandler(runner *backup.Runner, st *settings.Settings) *BackupHandler {
	return &BackupHandler{runner: runner, settings: st}
}

// RunBackup uploads every media file. A partial failure still answers with
// success; the report carries the counts.
func (h *BackupHandler) RunBackup(c *gin.Context) {
	report, err := h.runner.BackupAll(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, report)
}

func (h *BackupHandler) RunNewBackup(c *gin.Context) {
	report, err := h.runner.BackupNew(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, report)
}

type backupFileRequest struct {
	Path string `json:"path"`
}

// BackupFile uploads a single file right away, the way the immediate
// schedule handles a newly added attachment.
func (h *BackupHandler) BackupFile(c *gin.Context) {
	var req backupFileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
		badRequest(c, "File path is required")
		return
	}
	key, err := h.runner.BackupFile(c.Request.Context(), req.Path)
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"message": "File backed up successfully", "key": key})
}

func (h *BackupHandler) GetStats(c *gin.Context) {
	stats, err := h.runner.Stats(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, stats)
}

func (h *BackupHandler) ClearHistory(c *gin.Context) {
	if err := h.runner.Clear(c.Request.Context()); err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"message": "Backup history cleared successfully"})
}

func (h *BackupHandler) GetSettings(c *gin.Context) {
	bs, err := h.settings.BackupSettings(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, bs)
}

func (h *BackupHandler) UpdateSettings(c *gin.Context) {
	bs := settings.DefaultBackupSettings
	if err := c.ShouldBindJSON(&bs); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if bs.Schedule != backup.ScheduleCustom {
		bs.CustomHours = max(bs.CustomHours, 1)
	}
	if err := backup.ValidateSettings(bs); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.settings.SaveBackupSettings(c.Request.Context(), bs); err != nil {
		errorResponse(c, err)
		return
	}
	ok(c, gin.H{"message": "Backup settings saved successfully", "settings": bs})
}
