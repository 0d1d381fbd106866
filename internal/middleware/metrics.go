package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"storefront/internal/monitor"
)

// Metrics records request count and latency by route template
func Metrics(m *monitor.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Tracing opens a server span per request and continues any upstream trace
func Tracing(tracer *monitor.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracer.StartHTTPSpan(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header),
			c.Request.Method, route, c.ClientIP())
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if status := c.Writer.Status(); status >= 500 {
			tracer.AddSpanAttributes(span, attribute.Int("http.status_code", status))
			if len(c.Errors) > 0 {
				tracer.RecordError(span, c.Errors.Last())
			}
		}
	}
}
