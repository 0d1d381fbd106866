package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"storefront/pkg/limiter"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// RateLimitConfig rate limit middleware configuration
type RateLimitConfig struct {
	Limiter limiter.RateLimiter
	// KeyFunc defaults to the client IP
	KeyFunc func(*gin.Context) string
	// SkipFunc exempts matching requests
	SkipFunc func(*gin.Context) bool
}

// RateLimit limits requests per client IP
func RateLimit(l limiter.RateLimiter) gin.HandlerFunc {
	return RateLimitWithConfig(RateLimitConfig{Limiter: l})
}

// RateLimitWithConfig rate limit middleware with configuration
func RateLimitWithConfig(config RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	return func(c *gin.Context) {
		if config.Limiter == nil || (config.SkipFunc != nil && config.SkipFunc(c)) {
			c.Next()
			return
		}

		key := config.KeyFunc(c)
		allowed, err := config.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// availability over strictness for the general API limiter
			log.FromContext(c.Request.Context()).WithError(err).Warn("rate limiter unavailable")
			c.Next()
			return
		}
		if !allowed {
			log.FromContext(c.Request.Context()).WithFields(logrus.Fields{"key": key}).Debug("request throttled")
			utils.Error(c, utils.CodeRateLimit, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
