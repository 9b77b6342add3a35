package cache

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures the circuit breaker around a remote cache.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32
	// Timeout is how long the circuit stays open before a half-open probe.
	Timeout time.Duration
	// OnStateChange, when set, is called on every transition (for logs and metrics).
	OnStateChange func(from, to string)
}

// BreakerCache wraps a Cache so that a failing backend is skipped while the circuit is open.
// Open-circuit calls fail fast with gobreaker.ErrOpenState.
type BreakerCache struct {
	next Cache
	cb   *gobreaker.CircuitBreaker
}

type getResult struct {
	value []byte
	ok    bool
}

// NewBreakerCache returns next guarded by a circuit breaker named name.
func NewBreakerCache(name string, next Cache, cfg BreakerConfig) *BreakerCache {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			cfg.OnStateChange(from.String(), to.String())
		}
	}
	return &BreakerCache{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Get implements Cache.Get. A miss counts as success.
func (b *BreakerCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		value, ok, err := b.next.Get(ctx, key)
		return getResult{value, ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(getResult)
	return res.value, res.ok, nil
}

// Set implements Cache.Set.
func (b *BreakerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Set(ctx, key, value, ttl)
	})
	return err
}

// State returns the breaker state: "closed", "half-open" or "open".
func (b *BreakerCache) State() string {
	return b.cb.State().String()
}
