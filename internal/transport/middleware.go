package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	apperrors "go-jp-digitizer/internal/errors"
	"go-jp-digitizer/internal/logger"
	"go-jp-digitizer/internal/pipeline"
	"go-jp-digitizer/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestID reuses a caller supplied X-Request-ID or generates one
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithRequestID(requestIDFrom(c)).WithFields(logrus.Fields{
			"method":             c.Request.Method,
			"path":               c.Request.URL.Path,
			"status":             c.Writer.Status(),
			"ip":                 c.ClientIP(),
			"user_agent":         c.Request.UserAgent(),
			"processing_time_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("Request completed with server error")
			return
		}
		entry.Info("Request completed")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			code := determineStatusCode(err)
			respondJSONError(c, code, apperrors.KindOf(err), apperrors.MessageOf(err), err)
		}
	}
}

func determineStatusCode(err error) int {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) respondFailure(c *gin.Context, f *pipeline.Failure, asJSON bool) {
	h.respond(c, apperrors.StatusCodeFor(f.Kind), f.Kind, f.Message, nil, asJSON)
}

func (h *handler) respondError(c *gin.Context, err error, asJSON bool) {
	h.respond(c, determineStatusCode(err), apperrors.KindOf(err), apperrors.MessageOf(err), err, asJSON)
}

func (h *handler) respond(c *gin.Context, code int, kind apperrors.Kind, message string, err error, asJSON bool) {
	if asJSON {
		respondJSONError(c, code, kind, message, err)
		return
	}
	logFailure(c, code, kind, message, err)
	c.Abort()
	c.String(code, message)
}

func respondJSONError(c *gin.Context, code int, kind apperrors.Kind, message string, err error) {
	logFailure(c, code, kind, message, err)
	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:     http.StatusText(code),
		Kind:      string(kind),
		Message:   message,
		RequestID: requestIDFrom(c),
	})
}

func logFailure(c *gin.Context, code int, kind apperrors.Kind, message string, err error) {
	entry := logger.WithRequestID(requestIDFrom(c)).WithFields(logrus.Fields{
		"status_code": code,
		"kind":        kind,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
		return
	}
	entry.Warn("Request rejected")
}
