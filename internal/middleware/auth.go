package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"storefront/internal/model"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

const (
	// AuthorizationHeader carries the bearer token
	AuthorizationHeader = "Authorization"
	// BearerPrefix Bearer prefix
	BearerPrefix = "Bearer "
	// IdentityKey is where the verified identity lives in the gin context
	IdentityKey = "identity"
)

// TokenValidator resolves an access token to an identity
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.Identity, error)
}

// Auth rejects requests without a valid bearer token
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthorizationHeader)
		if header == "" {
			utils.Error(c, utils.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}
		if !strings.HasPrefix(header, BearerPrefix) {
			utils.Error(c, utils.CodeUnauthorized, "invalid authorization header format")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		identity, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			utils.AppErrorResponse(c, err)
			c.Abort()
			return
		}

		c.Set(IdentityKey, identity)
		ctx := log.NewContext(c.Request.Context(), logrus.Fields{"user_id": identity.ID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole must run after Auth
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			utils.Error(c, utils.CodeUnauthorized, "unauthorized")
			c.Abort()
			return
		}
		if identity.Role != role {
			utils.Error(c, utils.CodeForbidden, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetIdentity returns the identity stored by Auth
func GetIdentity(c *gin.Context) (*model.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*model.Identity)
	return identity, ok && identity != nil
}
