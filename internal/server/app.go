package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"storefront/internal/config"
	"storefront/internal/consumer"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/monitor"
	"storefront/internal/redis"
	"storefront/internal/repository"
	"storefront/internal/service/auth"
	"storefront/internal/service/catalog"
	"storefront/internal/service/checkout"
	"storefront/internal/service/description"
	"storefront/internal/service/otp"
	"storefront/internal/utils"
	"storefront/pkg/breaker"
	"storefront/pkg/limiter"
	"storefront/pkg/log"
	"storefront/pkg/queue"
	"storefront/pkg/snowflake"
)

// Version is reported by /health and the tracer resource
const Version = "1.0.0"

const (
	systemMetricsInterval = 15 * time.Second
	limiterCleanupEvery   = 5 * time.Minute
)

// App owns every long-lived component of the service
type App struct {
	Config  *config.Config
	Router  *gin.Engine
	Store   *catalog.Store
	Engine  *checkout.Engine
	Auth    auth.AuthService
	Queue   *queue.MemoryQueue
	Metrics *monitor.Metrics
	Tracer  *monitor.Tracer

	consumer    *consumer.OrderConsumer
	httpLimiter *limiter.TokenBucketLimiter
	closers     []func() error
	cancel      context.CancelFunc
}

// NewApp wires the service described by cfg. Optional backends (MySQL,
// Redis) are connected only when enabled. On error everything opened so
// far is closed again.
func NewApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = app.closeAll()
		}
	}()

	if cfg.Metrics.Enabled {
		app.Metrics = monitor.NewMetrics(cfg.Metrics.Namespace)
	}
	app.Tracer, err = monitor.NewTracer(&monitor.TracerConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		Environment:    config.Env(),
		JaegerEndpoint: cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, err
	}

	app.Queue = queue.NewMemoryQueue(nil)
	app.closers = append(app.closers, app.Queue.Close)
	checks := map[string]handler.HealthCheck{
		"queue": func(context.Context) error { return app.Queue.Health() },
	}

	persister, err := app.openDatabase(checks)
	if err != nil {
		return nil, err
	}
	rdb, err := app.openRedis(checks)
	if err != nil {
		return nil, err
	}

	ids, err := snowflake.NewIDGenerator(cfg.Store.NodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}
	app.Store = catalog.New(catalog.Config{
		PlaceholderImage: cfg.Store.PlaceholderImage,
		DefaultCategory:  cfg.Store.DefaultCategory,
		Persister:        persister,
		IDs:              ids,
	})
	if cfg.Store.Persistence == config.PersistenceMySQL {
		if err = app.Store.Load(ctx); err != nil {
			return nil, err
		}
	}
	if cfg.Store.Seed {
		if err = app.Store.Seed(ctx); err != nil {
			return nil, err
		}
	}

	app.Auth = newAuthService(cfg, rdb, app.Metrics)

	var replay *checkout.ReplayGuard
	if cfg.Checkout.Idempotency.Enabled {
		replay, err = checkout.NewReplayGuard(checkout.ReplayConfig{
			TTL:           cfg.Checkout.Idempotency.TTL,
			ExpectedKeys:  cfg.Checkout.Idempotency.ExpectedKeys,
			FalsePositive: cfg.Checkout.Idempotency.FalsePositive,
			MaxSizeMB:     cfg.Cache.Local.MaxSizeMB,
		})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, replay.Close)
	}
	app.Engine = checkout.NewEngine(app.Store, app.Queue, replay, app.Metrics, app.Tracer, checkout.Config{
		Timeout: cfg.Checkout.Timeout,
		Latency: cfg.Checkout.Latency,
		Topic:   cfg.Checkout.Topic,
	})
	app.consumer = consumer.NewOrderConsumer(app.Queue, cfg.Checkout.Topic, cfg.Store.LowStockThreshold,
		consumer.LogNotifier{}, app.Metrics, app.Tracer)

	generator, err := newGenerator(cfg, app.Metrics)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, generator.Close)

	app.httpLimiter = limiter.NewTokenBucketLimiter(rate.Limit(cfg.RateLimit.PerIP.RPS), cfg.RateLimit.PerIP.Burst)

	app.Router = NewRouter(RouterDeps{
		Config:      cfg,
		AuthService: app.Auth,
		Limiter:     app.httpLimiter,
		Metrics:     app.Metrics,
		Tracer:      app.Tracer,
	}, Handlers{
		Auth:    handler.NewAuthHandler(app.Auth),
		Catalog: handler.NewCatalogHandler(app.Store, generator),
		Orders:  handler.NewOrderHandler(app.Engine, app.Store),
		Health:  handler.NewHealthHandler(Version, checks),
	})

	return app, nil
}

func (a *App) openDatabase(checks map[string]handler.HealthCheck) (catalog.Persister, error) {
	if !a.Config.Database.Enabled {
		return nil, nil
	}

	db, err := database.Init(a.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.closers = append(a.closers, database.Close)
	checks["database"] = database.Health

	if a.Config.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	if a.Config.Store.Persistence != config.PersistenceMySQL {
		return nil, nil
	}
	return repository.NewCatalogPersister(db), nil
}

func (a *App) openRedis(checks map[string]handler.HealthCheck) (*goredis.Client, error) {
	if !a.Config.Redis.Enabled {
		return nil, nil
	}

	if err := redis.Init(a.Config); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, redis.Close)
	checks["redis"] = redis.Health

	rdb := redis.NewClient(a.Config)
	a.closers = append(a.closers, rdb.Close)
	return rdb, nil
}

func newAuthService(cfg *config.Config, rdb *goredis.Client, metrics *monitor.Metrics) auth.AuthService {
	var (
		store        otp.Store
		issueLimiter limiter.RateLimiter
	)
	if cfg.OTP.Store == config.OTPStoreRedis && rdb != nil {
		store = otp.NewRedisStore(rdb, cfg.OTP.KeyPrefix)
		if cfg.OTP.IssueLimit > 0 {
			issueLimiter = limiter.NewSlidingWindowLimiter(rdb, cfg.OTP.IssueLimit, cfg.OTP.IssueWindow).
				WithPrefix(cfg.OTP.KeyPrefix + "issue:")
		}
	} else {
		store = otp.NewMemoryStore()
		if cfg.OTP.IssueLimit > 0 {
			issueLimiter = limiter.NewWindowLimiter(cfg.OTP.IssueLimit, cfg.OTP.IssueWindow)
		}
	}

	channel := otp.NewChannel(cfg.OTP.Channel)
	if channel.Name() == otp.ChannelDemo {
		log.Warn("OTP demo channel enabled: login codes are returned in API responses")
	}

	return auth.NewAuthService(
		otp.NewManager(store, otp.Config{TTL: cfg.OTP.TTL, HashCost: cfg.OTP.HashCost}),
		channel,
		issueLimiter,
		utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, cfg.Security.JWT.Expire),
		metrics,
		auth.Config{
			OwnerPhone:    cfg.Store.OwnerPhone,
			LoginLatency:  cfg.Latency.Login,
			VerifyLatency: cfg.Latency.Verify,
		},
	)
}

func newGenerator(cfg *config.Config, metrics *monitor.Metrics) (*description.Generator, error) {
	cb := breaker.NewCircuitBreaker("description", breaker.Config{
		MaxRequests: cfg.CircuitBreak.MaxRequests,
		Interval:    cfg.CircuitBreak.Interval,
		Timeout:     cfg.CircuitBreak.Timeout,
		OnStateChange: func(name string, from, to breaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	dcfg := description.Config{
		APIKey:   cfg.Description.APIKey,
		Endpoint: cfg.Description.Endpoint,
		Model:    cfg.Description.Model,
		Timeout:  cfg.Description.Timeout,
	}
	if cfg.Cache.Local.Enabled {
		dcfg.CacheTTL = cfg.Cache.Local.TTL
		dcfg.CacheMaxMB = cfg.Cache.Local.MaxSizeMB
	}
	if dcfg.APIKey == "" {
		log.Warn("Description API key not set, generated descriptions are disabled")
	}
	return description.NewGenerator(dcfg, cb, metrics)
}

// Start runs the background workers until ctx is done or Close is called
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.consumer.Start(ctx); err != nil {
		cancel()
		return err
	}

	for _, p := range a.Store.List() {
		a.Metrics.SetProductStock(p.ID, p.Stock)
	}
	a.Metrics.StartSystemMetricsCollection(ctx, systemMetricsInterval)

	go func() {
		ticker := time.NewTicker(limiterCleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := a.httpLimiter.Cleanup(); n > 0 {
					log.WithField("removed", n).Debug("Idle rate limit buckets dropped")
				}
			}
		}
	}()
	return nil
}

// Close stops the workers and releases every backend
func (a *App) Close(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.consumer.Stop()

	err := a.closeAll()
	if terr := a.Tracer.Shutdown(ctx); terr != nil {
		err = errors.Join(err, terr)
	}
	return err
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
