package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/apperror"
)

// ErrorResponse is the wire shape for all error replies. Stack carries the
// underlying cause chain and is only populated outside production.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

var kindLabels = map[apperror.Kind]string{
	apperror.NotFound:     "not_found",
	apperror.Conflict:     "conflict",
	apperror.BadRequest:   "bad_request",
	apperror.Unauthorized: "unauthorized",
	apperror.Forbidden:    "forbidden",
	apperror.Internal:     "internal_error",
}

// respondError maps a domain error onto an HTTP reply. Internal errors are
// logged with their cause and answered with a generic message so internals
// never leak to clients.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)

	message := err.Error()
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if kind == apperror.Internal {
		logger.WithError(err).WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Request failed")
		message = "Something went wrong. Please try again."
	}

	resp := ErrorResponse{
		Status:  kindLabels[kind],
		Message: message,
	}
	if gin.Mode() != gin.ReleaseMode {
		resp.Stack = err.Error()
	}

	c.JSON(status, resp)
}

// respondBadRequest answers a request that failed body/param binding
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Status:  "validation_error",
		Message: message,
	})
}

// parseUUIDParam reads a path parameter as a UUID
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondBadRequest(c, "Invalid "+name+" in URL")
		return uuid.Nil, false
	}
	return id, true
}
