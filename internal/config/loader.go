package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STOREFRONT_SERVER_PORT
const EnvPrefix = "STOREFRONT"

var (
	// GlobalConfig holds the global configuration instance
	GlobalConfig *Config

	mu         sync.RWMutex
	loadedFrom string
)

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
		v.AddConfigPath("/etc/storefront")
		v.AddConfigPath("$HOME/.storefront")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var basePath string
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Printf("Config file not found, using defaults and environment variables\n")
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		basePath = v.ConfigFileUsed()
		fmt.Printf("Using config file: %s\n", basePath)

		// config.<env>.yaml next to the base file overrides it
		envConfigPath := filepath.Join(filepath.Dir(basePath), fmt.Sprintf("config.%s.yaml", Env()))
		if _, err := os.Stat(envConfigPath); err == nil {
			v.SetConfigFile(envConfigPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to merge env config: %w", err)
			}
			fmt.Printf("Loaded environment config: %s\n", envConfigPath)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	mu.Lock()
	GlobalConfig = config
	loadedFrom = basePath
	mu.Unlock()

	return config, nil
}

// bindEnvKeys makes AutomaticEnv work for keys absent from the config file.
// viper only consults the environment for keys it already knows about.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.port", "server.mode",
		"database.enabled", "database.host", "database.port", "database.username", "database.password", "database.dbname",
		"redis.enabled", "redis.host", "redis.port", "redis.password",
		"log.level", "log.format", "log.output",
		"security.jwt.secret",
		"store.owner_phone", "store.persistence", "store.seed",
		"otp.store", "otp.ttl", "otp.channel",
		"checkout.timeout", "checkout.latency",
		"latency.login", "latency.verify",
		"description.api_key",
	} {
		_ = v.BindEnv(key)
	}
}

// MustLoadConfig loads configuration and panics on error
func MustLoadConfig(configPath string) *Config {
	config, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	return config
}

// GetConfig returns the global configuration instance
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if GlobalConfig == nil {
		panic("Config not loaded. Call LoadConfig first.")
	}
	return GlobalConfig
}

// ReloadConfig reloads the configuration from the file it was first read from
func ReloadConfig() error {
	mu.RLock()
	path, loaded := loadedFrom, GlobalConfig != nil
	mu.RUnlock()
	if !loaded {
		return fmt.Errorf("config not initialized")
	}

	if _, err := LoadConfig(path); err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	return nil
}

// WatchConfig watches for configuration file changes
func WatchConfig(callback func(*Config)) {
	mu.RLock()
	path := loadedFrom
	mu.RUnlock()
	if path == "" {
		return
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Printf("Config file changed: %s\n", e.Name)
		if err := ReloadConfig(); err != nil {
			fmt.Printf("Failed to reload config: %v\n", err)
			return
		}
		if callback != nil {
			callback(GetConfig())
		}
	})
	v.WatchConfig()
}

// Env returns the deployment environment name
func Env() string {
	return GetEnv(EnvPrefix+"_ENV", "dev")
}

// GetEnv returns environment variable value with fallback
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// IsDevelopment returns true if running in development mode
func IsDevelopment() bool {
	env := Env()
	return env == "dev" || env == "development"
}

// IsProduction returns true if running in production mode
func IsProduction() bool {
	env := Env()
	return env == "prod" || env == "production"
}
