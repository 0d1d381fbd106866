package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler("1.0.0", map[string]HealthCheck{"queue": ok})
		r := gin.New()
		r.GET("/health", h.Health)

		w := doJSON(r, http.MethodGet, "/health", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "1.0.0", body["version"])
	})

	t.Run("one dependency down", func(t *testing.T) {
		h := NewHealthHandler("1.0.0", map[string]HealthCheck{"queue": ok, "database": down})
		r := gin.New()
		r.GET("/health", h.Health)

		w := doJSON(r, http.MethodGet, "/health", nil, nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
	})

	t.Run("ping", func(t *testing.T) {
		h := NewHealthHandler("1.0.0", nil)
		r := gin.New()
		r.GET("/ping", h.Ping)

		w := doJSON(r, http.MethodGet, "/ping", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "pong")
	})
}
