package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/bits-and-blooms/bloom/v3"
	"golang.org/x/sync/singleflight"

	"storefront/pkg/log"
)

// ReplayConfig replay guard configuration
type ReplayConfig struct {
	TTL           time.Duration
	ExpectedKeys  uint
	FalsePositive float64
	MaxSizeMB     int
}

// ReplayGuard remembers checkout results by idempotency key so a retried
// submission gets the original answer instead of a second order
type ReplayGuard struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	cache  *bigcache.BigCache
	group  singleflight.Group
}

// NewReplayGuard creates a replay guard
func NewReplayGuard(cfg ReplayConfig) (*ReplayGuard, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.ExpectedKeys == 0 {
		cfg.ExpectedKeys = 100000
	}
	if cfg.FalsePositive <= 0 || cfg.FalsePositive >= 1 {
		cfg.FalsePositive = 0.01
	}

	cacheCfg := bigcache.DefaultConfig(cfg.TTL)
	cacheCfg.CleanWindow = time.Minute
	cacheCfg.HardMaxCacheSize = cfg.MaxSizeMB
	cacheCfg.Verbose = false
	cache, err := bigcache.New(context.Background(), cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create replay cache: %w", err)
	}

	return &ReplayGuard{
		filter: bloom.NewWithEstimates(cfg.ExpectedKeys, cfg.FalsePositive),
		cache:  cache,
	}, nil
}

func replayKey(userID, key string) string {
	return userID + "\x00" + key
}

// Lookup returns the remembered result for (userID, key)
func (g *ReplayGuard) Lookup(userID, key string) (*Result, bool) {
	k := replayKey(userID, key)

	g.mu.Lock()
	maybe := g.filter.TestString(k)
	g.mu.Unlock()
	if !maybe {
		return nil, false
	}

	data, err := g.cache.Get(k)
	if err != nil {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false
	}
	return &res, true
}

// Remember stores res under (userID, key)
func (g *ReplayGuard) Remember(userID, key string, res *Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	k := replayKey(userID, key)
	if err := g.cache.Set(k, data); err != nil {
		return err
	}

	g.mu.Lock()
	g.filter.AddString(k)
	g.mu.Unlock()
	return nil
}

// Do returns the remembered result for (userID, key) or runs fn once and
// remembers what it returns. Concurrent calls with the same key share one
// run of fn. Errors are not remembered, so a failed attempt can be retried.
// The boolean reports whether the result came from an earlier run.
func (g *ReplayGuard) Do(userID, key string, fn func() (*Result, error)) (*Result, bool, error) {
	if res, ok := g.Lookup(userID, key); ok {
		return res, true, nil
	}

	ran := false
	v, err, _ := g.group.Do(replayKey(userID, key), func() (interface{}, error) {
		if res, ok := g.Lookup(userID, key); ok {
			return res, nil
		}
		ran = true
		res, err := fn()
		if err != nil {
			return nil, err
		}
		if err := g.Remember(userID, key, res); err != nil {
			log.WithError(err).Warn("Failed to remember checkout result")
		}
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Result), !ran, nil
}

// Close releases the cache
func (g *ReplayGuard) Close() error {
	return g.cache.Close()
}
