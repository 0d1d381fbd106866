package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"storefront/pkg/log"
)

const (
	// RequestIDHeader echoes the request id back to the client
	RequestIDHeader = "X-Request-ID"
	// IdempotencyKeyHeader lets clients retry a checkout safely
	IdempotencyKeyHeader = "Idempotency-Key"
	// RequestIDKey request id in the gin context
	RequestIDKey = "request_id"
)

// RequestID assigns every request an id and attaches it to the log context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		ctx := log.NewContext(c.Request.Context(), logrus.Fields{"request_id": id})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Logger logs one line per request, at a level chosen by status code
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		statusCode := c.Writer.Status()

		fields := logrus.Fields{
			"status":     statusCode,
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
			"latency":    time.Since(start).String(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := log.FromContext(c.Request.Context()).WithFields(fields)
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request completed")
		}
	}
}
