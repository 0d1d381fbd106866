package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/pkg/limiter"
	"storefront/pkg/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

type staticValidator map[string]*model.Identity

func (v staticValidator) ValidateToken(_ context.Context, token string) (*model.Identity, error) {
	if identity, ok := v[token]; ok {
		return identity, nil
	}
	return nil, utils.NewError(utils.CodeUnauthorized, "invalid token")
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.Response {
	t.Helper()
	var resp utils.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "ok", path: "/ok", status: http.StatusOK},
		{name: "client error", path: "/bad", status: http.StatusBadRequest},
		{name: "server error", path: "/boom", status: http.StatusInternalServerError},
	}

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path+"?q=1", nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) {
		seen = c.GetString(RequestIDKey)
		c.Status(http.StatusNoContent)
	})

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/id", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	})
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, int(utils.CodeInternalError), decode(t, w).Code)
}

func TestAuth(t *testing.T) {
	owner := &model.Identity{ID: "u_9999999999", PhoneNumber: "9999999999", Role: model.RoleOwner}
	regular := &model.Identity{ID: "u_5551234567", PhoneNumber: "5551234567", Role: model.RoleRegular}
	validator := staticValidator{"owner-token": owner, "regular-token": regular}

	r := gin.New()
	r.GET("/me", Auth(validator), func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, identity)
	})
	r.GET("/admin", Auth(validator), RequireRole(model.RoleOwner), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/unguarded", RequireRole(model.RoleOwner), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantCode   utils.ResponseCode
	}{
		{name: "missing header", path: "/me", wantStatus: http.StatusUnauthorized, wantCode: utils.CodeUnauthorized},
		{name: "wrong scheme", path: "/me", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantCode: utils.CodeUnauthorized},
		{name: "unknown token", path: "/me", header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantCode: utils.CodeUnauthorized},
		{name: "valid token", path: "/me", header: "Bearer regular-token", wantStatus: http.StatusOK},
		{name: "owner on admin route", path: "/admin", header: "Bearer owner-token", wantStatus: http.StatusOK},
		{name: "regular on admin route", path: "/admin", header: "Bearer regular-token", wantStatus: http.StatusForbidden, wantCode: utils.CodeForbidden},
		{name: "role check without auth", path: "/unguarded", wantStatus: http.StatusUnauthorized, wantCode: utils.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(AuthorizationHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != 0 {
				assert.Equal(t, int(tt.wantCode), decode(t, w).Code)
			}
		})
	}

	t.Run("identity is exposed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(AuthorizationHeader, "Bearer regular-token")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		var got model.Identity
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, regular.ID, got.ID)
		assert.Equal(t, model.RoleRegular, got.Role)
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("per client ip", func(t *testing.T) {
		r := gin.New()
		r.Use(RateLimit(limiter.NewTokenBucketLimiter(rate.Every(time.Hour), 2)))
		r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		send := func(ip string) int {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.RemoteAddr = ip + ":1234"
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			return w.Code
		}

		assert.Equal(t, http.StatusOK, send("10.0.0.1"))
		assert.Equal(t, http.StatusOK, send("10.0.0.1"))
		assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
		assert.Equal(t, http.StatusOK, send("10.0.0.2"))
	})

	t.Run("skip func", func(t *testing.T) {
		r := gin.New()
		r.Use(RateLimitWithConfig(RateLimitConfig{
			Limiter:  limiter.NewTokenBucketLimiter(rate.Every(time.Hour), 1),
			SkipFunc: func(c *gin.Context) bool { return c.Request.URL.Path == "/health" },
		}))
		r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("limiter failure lets requests through", func(t *testing.T) {
		r := gin.New()
		r.Use(RateLimit(failingLimiter{}))
		r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(50 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)

		if err := utils.SleepContext(c.Request.Context(), time.Second); err != nil {
			utils.AppErrorResponse(c, utils.ErrTimeout)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)

	t.Run("zero disables", func(t *testing.T) {
		r := gin.New()
		r.Use(Timeout(0))
		r.GET("/", func(c *gin.Context) {
			_, ok := c.Request.Context().Deadline()
			assert.False(t, ok)
			c.Status(http.StatusOK)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCORS(t *testing.T) {
	t.Run("allow list", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS(CORSConfig{AllowOrigins: []string{"http://shop.example"}, AllowCredentials: true}))
		r.GET("/products", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodOptions, "/products", nil)
		req.Header.Set("Origin", "http://shop.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("foreign origin rejected", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS(CORSConfig{AllowOrigins: []string{"http://shop.example"}}))
		r.GET("/products", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("wildcard", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS(CORSConfig{}))
		r.GET("/products", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		req.Header.Set("Origin", "http://anything.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetrics(t *testing.T) {
	m := monitor.NewMetrics("mwtest")
	r := gin.New()
	r.Use(Metrics(m), Tracing(nil))
	r.GET("/products/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/p1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()
	assert.Contains(t, body, `mwtest_http_requests_total{method="GET",path="/products/:id",status="200"} 1`)
}
