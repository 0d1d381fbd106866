package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/internal/service/auth"
	"storefront/pkg/limiter"
	"storefront/pkg/utils"
)

// Handlers groups the HTTP handlers mounted by NewRouter
type Handlers struct {
	Auth    *handler.AuthHandler
	Catalog *handler.CatalogHandler
	Orders  *handler.OrderHandler
	Health  *handler.HealthHandler
}

// RouterDeps everything NewRouter needs besides the handlers
type RouterDeps struct {
	Config      *config.Config
	AuthService auth.AuthService
	Limiter     limiter.RateLimiter
	Metrics     *monitor.Metrics
	Tracer      *monitor.Tracer
}

// NewRouter builds the gin engine with the full middleware chain and routes
func NewRouter(deps RouterDeps, h Handlers) *gin.Engine {
	cfg := deps.Config
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Tracing(deps.Tracer))
	router.Use(middleware.Metrics(deps.Metrics))
	router.Use(middleware.Logger())
	if cfg.Security.CORS.Enabled {
		router.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins:     cfg.Security.CORS.AllowOrigins,
			AllowCredentials: cfg.Security.CORS.AllowCredentials,
			MaxAge:           cfg.Security.CORS.MaxAge,
		}))
	}

	// probes are never throttled
	probe := func(c *gin.Context) bool {
		p := c.Request.URL.Path
		return strings.HasSuffix(p, "/health") || strings.HasSuffix(p, "/ping")
	}

	router.GET("/health", h.Health.Health)
	router.GET("/ping", h.Health.Ping)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")
	if cfg.RateLimit.Enabled && deps.Limiter != nil {
		api.Use(middleware.RateLimitWithConfig(middleware.RateLimitConfig{
			Limiter:  deps.Limiter,
			SkipFunc: probe,
		}))
	}
	api.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	v1 := api.Group("/v1")
	{
		v1.GET("/health", h.Health.Health)
		v1.GET("/ping", h.Health.Ping)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/otp", h.Auth.RequestCode)
			authGroup.POST("/verify", h.Auth.Verify)
		}

		v1.GET("/products", h.Catalog.ListProducts)
		v1.GET("/products/:id", h.Catalog.GetProduct)

		protected := v1.Group("")
		protected.Use(middleware.Auth(deps.AuthService))
		{
			protected.POST("/checkout", h.Orders.Checkout)
			protected.GET("/orders", h.Orders.ListOrders)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.Auth(deps.AuthService), middleware.RequireRole(model.RoleOwner))
		{
			admin.GET("/orders", h.Orders.ListAllOrders)
			admin.POST("/products", h.Catalog.CreateProduct)
			admin.PUT("/products/:id/price", h.Catalog.UpdatePrice)
			admin.PUT("/products/:id/stock", h.Catalog.UpdateStock)
			admin.DELETE("/products/:id", h.Catalog.DeleteProduct)
			admin.POST("/descriptions", h.Catalog.GenerateDescription)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusNotFound, "route not found")
	})

	return router
}
