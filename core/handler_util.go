package core

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
)

// respondError sends unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// envelope is the response shape of the auth endpoints.
type envelope struct {
	Status  int               `json:"status"`
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func respondEnvelope(c *gin.Context, status int, success bool, message string, data any, errs map[string]string) {
	c.JSON(status, envelope{Status: status, Success: success, Message: message, Data: data, Errors: errs})
}

func logRequestError(c *gin.Context, msg string, err error) {
	args := []any{
		"request_id", requestID(c),
		"path", c.FullPath(),
		"error", err,
	}
	var ierr *InfrastructureError
	if errors.As(err, &ierr) && ierr.Err != nil {
		args = append(args, "cause", ierr.Err)
	}
	slog.ErrorContext(c.Request.Context(), msg, args...)
}
