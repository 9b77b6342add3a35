package http

import (
	"context"
	"sync/atomic"
	"time"
)

// inFlightTracker counts requests currently inside MetricsMiddleware. Shutdown waits on it
// after the listener is closed.
type inFlightTracker struct {
	count atomic.Int64
}

func (t *inFlightTracker) increment() { t.count.Add(1) }

func (t *inFlightTracker) decrement() { t.count.Add(-1) }

func (t *inFlightTracker) load() int64 { return t.count.Load() }

// waitForZero polls every checkInterval until the count is zero or ctx is done.
func (t *inFlightTracker) waitForZero(ctx context.Context, checkInterval time.Duration) error {
	if t.load() == 0 {
		return nil
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if t.load() == 0 {
				return nil
			}
		}
	}
}

var inFlight = &inFlightTracker{}

// InFlightCount returns the number of preview requests being served.
func InFlightCount() int64 {
	return inFlight.load()
}

// WaitForInFlight blocks until in-flight requests drain or ctx is done.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return inFlight.waitForZero(ctx, checkInterval)
}
