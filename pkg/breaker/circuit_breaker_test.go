package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream failed")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("description", cfg)
	cb.now = clock.now
	cb.Reset()
	return cb, clock
}

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(999).String())
}

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{})

	assert.Equal(t, "test", cb.Name())
	assert.Equal(t, uint32(1), cb.maxRequests)
	assert.Equal(t, time.Minute, cb.timeout)
	assert.Equal(t, StateClosed, cb.State())
}

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	var transitions []string
	cb, _ := newTestBreaker(Config{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	}
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, []string{"closed->open"}, transitions)

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpenState)
	assert.True(t, IsCircuitBreakerError(err))
	assert.False(t, called)
}

func TestHalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(Config{
		MaxRequests: 2,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	require.Equal(t, StateOpen, cb.State())

	clock.advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(Config{
		MaxRequests: 3,
		Timeout:     time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 2 },
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	clock.advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, cb.State())

	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())
}

func TestHalfOpenLimitsProbes(t *testing.T) {
	cb, clock := newTestBreaker(Config{
		MaxRequests: 1,
		Timeout:     time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.advance(2 * time.Second)

	err := cb.Execute(ctx, func(context.Context) error {
		// a second caller while the probe is in flight
		assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrTooManyRequests)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestIntervalClearsCounts(t *testing.T) {
	cb, clock := newTestBreaker(Config{
		Interval:    time.Minute,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 2 },
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	assert.Equal(t, uint32(1), cb.Counts().TotalFailures)

	clock.advance(2 * time.Minute)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.Counts().TotalFailures)
}

func TestCancellationIsNotAFailure(t *testing.T) {
	cb, _ := newTestBreaker(Config{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	err := cb.Execute(context.Background(), func(context.Context) error {
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err = cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestPanicCountsAsFailure(t *testing.T) {
	cb, _ := newTestBreaker(Config{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	assert.Panics(t, func() {
		_ = cb.Execute(context.Background(), func(context.Context) error {
			panic("boom")
		})
	})
	assert.Equal(t, StateOpen, cb.State())
}

func TestReset(t *testing.T) {
	cb, _ := newTestBreaker(Config{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	_ = cb.Execute(context.Background(), fail)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
}
