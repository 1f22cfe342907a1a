// file: internal/server/error_handler.go
// version: 2.0.0
// guid: 5d6e7f8a-9b0c-1d2e-3f4a-5b6c7d8e9f0a

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/logger"
	"github.com/jdfalk/bookmeta/internal/models"
)

// RespondWithError maps err to its status code and writes {error, logs}.
// Internal errors are reported without their cause.
func RespondWithError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	message := err.Error()
	if apperr.KindOf(err) == apperr.KindInternal {
		message = "internal server error"
	}

	trail := logger.TrailFrom(c.Request.Context())
	fields := map[string]interface{}{
		"status": status,
		"kind":   apperr.KindOf(err).String(),
		"error":  err.Error(),
	}
	if status >= http.StatusInternalServerError {
		trail.Error("request failed", fields)
	} else {
		trail.Warn("request failed", fields)
	}

	c.JSON(status, ErrorResponse{
		Error: message,
		Logs:  trail.Lines(),
	})
}

// HandleBindError handles JSON binding errors with a consistent response
func HandleBindError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	RespondWithError(c, apperr.Validation("invalid request body: %v", err))
	return true
}

// requestLogs returns the request trail lines.
func requestLogs(c *gin.Context) []string {
	return logger.TrailFrom(c.Request.Context()).Lines()
}

// ensureRecords converts a nil slice to an empty one so lists marshal as [].
func ensureRecords(recs []models.Record) []models.Record {
	if recs == nil {
		return []models.Record{}
	}
	return recs
}
