package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/doc2md/internal/agent/document/unstructured"
	"github.com/feichai0017/doc2md/internal/service/document"
	"github.com/feichai0017/doc2md/pkg/logger"
	"github.com/feichai0017/doc2md/pkg/queue"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var parseErr *unstructured.RecordParseError
	switch {
	case errors.Is(err, document.ErrInvalidFile),
		errors.Is(err, document.ErrBatchTooLarge),
		errors.Is(err, document.ErrEmptyBatch),
		errors.Is(err, unstructured.ErrInvalidFormat):
		return http.StatusBadRequest
	case errors.As(err, &parseErr),
		errors.Is(err, unstructured.ErrUnsupportedFileType),
		errors.Is(err, unstructured.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, queue.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, document.ErrTaskNotCompleted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func handleError(c *gin.Context, log logger.Logger, status int, message string, err error) {
	fields := []logger.Field{logger.String("path", c.Request.URL.Path)}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if status >= http.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Warn(message, fields...)
	}

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(status, response)
}
