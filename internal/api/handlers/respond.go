package handlers

import (
	"errors"

	"crosplit/internal/apperr"
	"crosplit/internal/logger"

	"github.com/gin-gonic/gin"
)

// respondError writes err with the status its kind maps to. Upstream payloads
// are passed through as details; unclassified errors are hidden.
func respondError(c *gin.Context, logger *logger.Logger, err error, extra gin.H) {
	status := apperr.HTTPStatus(err)
	body := gin.H{}
	for k, v := range extra {
		body[k] = v
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body["error"] = err.Error()
		body["kind"] = appErr.Kind
		if appErr.Payload != "" {
			body["details"] = appErr.Payload
		}
	} else {
		body["error"] = "internal server error"
	}

	if status >= 500 {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, body)
}
