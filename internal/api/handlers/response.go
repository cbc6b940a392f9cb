package handlers

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/s3master/internal/storage"
)

// ok writes the success envelope.
func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// badRequest writes a validation failure that never reached a service.
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"kind":    storage.KindValidation.String(),
		"code":    "",
		"message": message,
	})
}

// errorResponse maps err onto a status code and the failure envelope.
func errorResponse(c *gin.Context, err error) {
	status := StatusFor(err)
	kind, code, message := "internal", "", err.Error()

	var se *storage.Error
	if errors.As(err, &se) {
		kind, code = se.Kind.String(), se.Code
		if se.Message != "" {
			message = se.Message
		}
	}

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("path", c.Request.URL.Path).Int("status", status).Msg("request failed")

	c.JSON(status, gin.H{
		"success": false,
		"kind":    kind,
		"code":    code,
		"message": message,
	})
}

// StatusFor picks the HTTP status used to report err.
func StatusFor(err error) int {
	var se *storage.Error
	if !errors.As(err, &se) {
		if errors.Is(err, fs.ErrNotExist) {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	}
	switch se.Kind {
	case storage.KindValidation:
		return http.StatusBadRequest
	case storage.KindConfiguration:
		return http.StatusPreconditionFailed
	case storage.KindTransport:
		return http.StatusBadGateway
	case storage.KindRemote:
		if se.StatusCode >= 400 && se.StatusCode < 500 {
			return se.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
