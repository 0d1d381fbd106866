package config

import (
	"fmt"
	"time"
)

// Persistence modes for the catalog
const (
	PersistenceMemory = "memory"
	PersistenceMySQL  = "mysql"
)

// OTP session store backends
const (
	OTPStoreMemory = "memory"
	OTPStoreRedis  = "redis"
)

// OTP delivery channels
const (
	OTPChannelDemo    = "demo"
	OTPChannelDiscard = "discard"
)

// Config represents the global configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Log          LogConfig          `mapstructure:"log"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	CircuitBreak CircuitBreakConfig `mapstructure:"circuit_break"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Security     SecurityConfig     `mapstructure:"security"`
	Store        StoreConfig        `mapstructure:"store"`
	OTP          OTPConfig          `mapstructure:"otp"`
	Checkout     CheckoutConfig     `mapstructure:"checkout"`
	Latency      LatencyConfig      `mapstructure:"latency"`
	Description  DescriptionConfig  `mapstructure:"description"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderMB     int           `mapstructure:"max_header_mb"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	Loc             string        `mapstructure:"loc"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig represents tracing configuration
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig represents HTTP rate limiting configuration
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	PerIP   struct {
		RPS   float64 `mapstructure:"rps"`
		Burst int     `mapstructure:"burst"`
	} `mapstructure:"per_ip"`
}

// CircuitBreakConfig represents circuit breaker configuration
type CircuitBreakConfig struct {
	MaxRequests uint32        `mapstructure:"max_requests"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CacheConfig represents local cache configuration
type CacheConfig struct {
	Local struct {
		Enabled    bool          `mapstructure:"enabled"`
		TTL        time.Duration `mapstructure:"ttl"`
		MaxSizeMB  int           `mapstructure:"max_size_mb"`
		CleanEvery time.Duration `mapstructure:"clean_every"`
	} `mapstructure:"local"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	JWT struct {
		Secret string        `mapstructure:"secret"`
		Expire time.Duration `mapstructure:"expire"`
		Issuer string        `mapstructure:"issuer"`
	} `mapstructure:"jwt"`
	CORS struct {
		Enabled          bool     `mapstructure:"enabled"`
		AllowOrigins     []string `mapstructure:"allow_origins"`
		AllowCredentials bool     `mapstructure:"allow_credentials"`
		MaxAge           time.Duration `mapstructure:"max_age"`
	} `mapstructure:"cors"`
}

// StoreConfig represents catalog configuration
type StoreConfig struct {
	OwnerPhone        string `mapstructure:"owner_phone"`
	Seed              bool   `mapstructure:"seed"`
	PlaceholderImage  string `mapstructure:"placeholder_image"`
	DefaultCategory   string `mapstructure:"default_category"`
	Persistence       string `mapstructure:"persistence"` // memory, mysql
	LowStockThreshold int    `mapstructure:"low_stock_threshold"`
	NodeID            int64  `mapstructure:"node_id"`
}

// OTPConfig represents one-time code configuration
type OTPConfig struct {
	Store string `mapstructure:"store"` // memory, redis
	// TTL zero means codes never expire
	TTL         time.Duration `mapstructure:"ttl"`
	Channel     string        `mapstructure:"channel"` // demo, discard
	HashCost    int           `mapstructure:"hash_cost"`
	IssueLimit  int           `mapstructure:"issue_limit"`
	IssueWindow time.Duration `mapstructure:"issue_window"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
}

// CheckoutConfig represents checkout engine configuration
type CheckoutConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Latency     time.Duration `mapstructure:"latency"`
	Topic       string        `mapstructure:"topic"`
	Idempotency struct {
		Enabled       bool          `mapstructure:"enabled"`
		TTL           time.Duration `mapstructure:"ttl"`
		ExpectedKeys  uint          `mapstructure:"expected_keys"`
		FalsePositive float64       `mapstructure:"false_positive"`
	} `mapstructure:"idempotency"`
}

// LatencyConfig simulated latency for the login flow
type LatencyConfig struct {
	Login  time.Duration `mapstructure:"login"`
	Verify time.Duration `mapstructure:"verify"`
}

// DescriptionConfig represents the description generator configuration
type DescriptionConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// GetAddr returns the server address
func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetDSN returns the database DSN
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=%s&timeout=10s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, d.Charset, d.Loc)
}

// GetAddr returns the Redis address
func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Store.Persistence {
	case PersistenceMemory:
	case PersistenceMySQL:
		if !c.Database.Enabled {
			return fmt.Errorf("store.persistence=mysql requires database.enabled")
		}
	default:
		return fmt.Errorf("unknown store persistence: %q", c.Store.Persistence)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name is required")
		}
	}

	switch c.OTP.Store {
	case OTPStoreMemory:
	case OTPStoreRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("otp.store=redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown otp store: %q", c.OTP.Store)
	}

	if c.OTP.Channel != OTPChannelDemo && c.OTP.Channel != OTPChannelDiscard {
		return fmt.Errorf("unknown otp channel: %q", c.OTP.Channel)
	}
	if c.OTP.TTL < 0 {
		return fmt.Errorf("otp ttl must not be negative")
	}

	if c.Store.OwnerPhone == "" {
		return fmt.Errorf("store owner phone is required")
	}

	if c.Security.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	return nil
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.MaxHeaderMB == 0 {
		c.Server.MaxHeaderMB = 1
	}

	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.Loc == "" {
		c.Database.Loc = "Local"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = 10 * time.Minute
	}
	if c.Database.SlowThreshold == 0 {
		c.Database.SlowThreshold = 200 * time.Millisecond
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 50
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 5
	}
	if c.Redis.MaxRetries == 0 {
		c.Redis.MaxRetries = 3
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "storefront"
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "storefront"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1
	}

	if c.RateLimit.PerIP.RPS == 0 {
		c.RateLimit.PerIP.RPS = 50
	}
	if c.RateLimit.PerIP.Burst == 0 {
		c.RateLimit.PerIP.Burst = 100
	}

	if c.CircuitBreak.MaxRequests == 0 {
		c.CircuitBreak.MaxRequests = 3
	}
	if c.CircuitBreak.Interval == 0 {
		c.CircuitBreak.Interval = time.Minute
	}
	if c.CircuitBreak.Timeout == 0 {
		c.CircuitBreak.Timeout = 30 * time.Second
	}

	if c.Cache.Local.TTL == 0 {
		c.Cache.Local.TTL = time.Hour
	}
	if c.Cache.Local.MaxSizeMB == 0 {
		c.Cache.Local.MaxSizeMB = 64
	}
	if c.Cache.Local.CleanEvery == 0 {
		c.Cache.Local.CleanEvery = 5 * time.Minute
	}

	if c.Security.JWT.Expire == 0 {
		c.Security.JWT.Expire = 24 * time.Hour
	}
	if c.Security.JWT.Issuer == "" {
		c.Security.JWT.Issuer = "storefront"
	}
	if c.Security.CORS.MaxAge == 0 {
		c.Security.CORS.MaxAge = 12 * time.Hour
	}

	if c.Store.OwnerPhone == "" {
		c.Store.OwnerPhone = "9999999999"
	}
	if c.Store.PlaceholderImage == "" {
		c.Store.PlaceholderImage = "https://picsum.photos/400/400?random=%s"
	}
	if c.Store.DefaultCategory == "" {
		c.Store.DefaultCategory = "General"
	}
	if c.Store.Persistence == "" {
		c.Store.Persistence = PersistenceMemory
	}
	if c.Store.LowStockThreshold == 0 {
		c.Store.LowStockThreshold = 5
	}
	if c.Store.NodeID == 0 {
		c.Store.NodeID = 1
	}

	if c.OTP.Store == "" {
		c.OTP.Store = OTPStoreMemory
	}
	if c.OTP.Channel == "" {
		c.OTP.Channel = OTPChannelDemo
	}
	if c.OTP.HashCost == 0 {
		c.OTP.HashCost = 6
	}
	if c.OTP.IssueWindow == 0 {
		c.OTP.IssueWindow = time.Minute
	}
	if c.OTP.KeyPrefix == "" {
		c.OTP.KeyPrefix = "otp:"
	}

	if c.Checkout.Timeout == 0 {
		c.Checkout.Timeout = 10 * time.Second
	}
	if c.Checkout.Topic == "" {
		c.Checkout.Topic = "orders.completed"
	}
	if c.Checkout.Idempotency.TTL == 0 {
		c.Checkout.Idempotency.TTL = 24 * time.Hour
	}
	if c.Checkout.Idempotency.ExpectedKeys == 0 {
		c.Checkout.Idempotency.ExpectedKeys = 100000
	}
	if c.Checkout.Idempotency.FalsePositive == 0 {
		c.Checkout.Idempotency.FalsePositive = 0.01
	}

	if c.Description.Endpoint == "" {
		c.Description.Endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}
	if c.Description.Model == "" {
		c.Description.Model = "gemini-3-flash-preview"
	}
	if c.Description.Timeout == 0 {
		c.Description.Timeout = 10 * time.Second
	}
}
