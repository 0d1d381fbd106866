package limiter

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter rate limiter interface
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

const slidingWindowScript = `
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	local current = redis.call('ZCARD', key)
	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return 1
	end
	return 0
`

var slidingWindow = redis.NewScript(slidingWindowScript)

// SlidingWindowLimiter sliding window rate limiter using Redis
type SlidingWindowLimiter struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
	seq    atomic.Uint64
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(client redis.Scripter, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		prefix: "rate_limit:",
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// WithPrefix sets the Redis key prefix
func (l *SlidingWindowLimiter) WithPrefix(prefix string) *SlidingWindowLimiter {
	l.prefix = prefix
	return l
}

// Allow checks if the request is allowed
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now().UnixMilli()
	windowStart := now - l.window.Milliseconds()
	// two hits in the same millisecond must not collapse into one member
	member := strconv.FormatInt(now, 10) + "-" + strconv.FormatUint(l.seq.Add(1), 10)

	result, err := slidingWindow.Run(ctx, l.client,
		[]string{l.prefix + key},
		now,
		windowStart,
		l.limit,
		l.window.Milliseconds(),
		member).Int()
	if err != nil {
		return false, fmt.Errorf("sliding window %s: %w", key, err)
	}

	return result == 1, nil
}

// TokenBucketLimiter keeps one golang.org/x/time/rate bucket per key
type TokenBucketLimiter struct {
	mu      sync.Mutex
	r       rate.Limit
	b       int
	buckets map[string]*bucket
	idle    time.Duration
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucketLimiter creates a keyed token bucket limiter refilling at r
// with burst b
func NewTokenBucketLimiter(r rate.Limit, b int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		r:       r,
		b:       b,
		buckets: make(map[string]*bucket),
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

// NewWindowLimiter allows limit events per window for each key
func NewWindowLimiter(limit int, window time.Duration) *TokenBucketLimiter {
	return NewTokenBucketLimiter(rate.Every(window/time.Duration(limit)), limit)
}

// Allow checks if the request is allowed
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN checks if n requests are allowed
func (l *TokenBucketLimiter) AllowN(_ context.Context, key string, n int) (bool, error) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.r, l.b)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, n), nil
}

// Cleanup drops buckets not used for the idle period and returns how many
// were removed
func (l *TokenBucketLimiter) Cleanup() int {
	cutoff := l.now().Add(-l.idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Unlimited never rejects
type Unlimited struct{}

// Allow always allows
func (Unlimited) Allow(context.Context, string) (bool, error) {
	return true, nil
}
