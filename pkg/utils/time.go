package utils

import (
	"context"
	"time"
)

const (
	// DateFormat ISO calendar date
	DateFormat = "2006-01-02"
)

// ParseDate parse an ISO calendar date
func ParseDate(dateStr string) (time.Time, error) {
	return time.Parse(DateFormat, dateStr)
}

// SleepContext waits for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when the wait was cut short.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
