package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig cross-origin settings
type CORSConfig struct {
	AllowOrigins     []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// CORS Cross-Origin Resource Sharing middleware. An empty or "*" origin
// list allows every origin.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()

	if len(cfg.AllowOrigins) == 0 || (len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = cfg.AllowOrigins
	}

	config.AllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Authorization",
		"Accept",
		RequestIDHeader,
		IdempotencyKeyHeader,
	}
	config.ExposeHeaders = []string{RequestIDHeader}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

	// browsers reject credentials with a wildcard origin
	config.AllowCredentials = cfg.AllowCredentials && !config.AllowAllOrigins
	if cfg.MaxAge > 0 {
		config.MaxAge = cfg.MaxAge
	}

	return cors.New(config)
}
