package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"storefront/internal/config"
)

// CompareAndDeleteScript deletes KEYS[1] only while it still holds ARGV[1]
const CompareAndDeleteScript = `
	local current = redis.call('GET', KEYS[1])
	if current == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`

var compareAndDelete = goredis.NewScript(CompareAndDeleteScript)

// NewClient builds the go-redis v9 client used by the OTP session store and
// the OTP issue limiter.
func NewClient(cfg *config.Config) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.GetAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
}

// CompareAndDelete atomically removes key if its value is still expected.
// It reports whether this call removed it.
func CompareAndDelete(ctx context.Context, rdb goredis.Scripter, key, expected string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, rdb, []string{key}, expected).Int()
	if err != nil {
		return false, fmt.Errorf("compare and delete %s: %w", key, err)
	}
	return n == 1, nil
}
