package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("secret", "storefront", time.Hour)

	token, err := m.GenerateAccessToken("u_9999999999", "9999999999", "OWNER")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u_9999999999", claims.UserID)
	assert.Equal(t, "9999999999", claims.PhoneNumber)
	assert.Equal(t, "OWNER", claims.Role)
	assert.Equal(t, "u_9999999999", claims.Subject)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager("secret", "storefront", time.Hour)
	token, err := m.GenerateAccessToken("u_1", "1", "REGULAR")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewJWTManager("other", "storefront", time.Hour).ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewJWTManager("secret", "elsewhere", time.Hour).ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewJWTManager("secret", "storefront", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ValidateToken("not.a.token")
		assert.Error(t, err)
	})
}
