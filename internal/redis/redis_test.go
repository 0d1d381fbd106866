package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/config"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func miniConfig(t *testing.T, mr *miniredis.Miniredis) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Redis.Host = mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Redis.Port = port
	return cfg
}

func TestInitAndHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := miniConfig(t, mr)

	require.NoError(t, Init(cfg))
	defer func() {
		assert.NoError(t, Close())
		Client = nil
	}()

	assert.NotNil(t, GetClient())
	assert.NoError(t, Health(context.Background()))

	mr.Close()
	assert.Error(t, Health(context.Background()))
}

func TestInitUnreachable(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Redis.Port = 1
	cfg.Redis.DialTimeout = 100 * time.Millisecond
	cfg.Redis.MaxRetries = -1

	assert.Error(t, Init(cfg))
	_ = Close()
	Client = nil
}

func TestHealthWithoutClient(t *testing.T) {
	Client = nil
	assert.Error(t, Health(context.Background()))
	assert.NoError(t, Close())
}

func TestCompareAndDelete(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("otp:9999999999", "digest-a"))

	deleted, err := CompareAndDelete(ctx, client, "otp:9999999999", "digest-b")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, mr.Exists("otp:9999999999"))

	deleted, err = CompareAndDelete(ctx, client, "otp:9999999999", "digest-a")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists("otp:9999999999"))

	deleted, err = CompareAndDelete(ctx, client, "otp:9999999999", "digest-a")
	require.NoError(t, err)
	assert.False(t, deleted)
}
