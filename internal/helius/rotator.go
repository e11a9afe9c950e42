// internal/helius/rotator.go
package helius

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// KeyRotator distributes requests across a pool of API keys, each with a
// request budget per rolling window. When every key is saturated, Get blocks
// until the key with the nearest reset becomes usable again.
type KeyRotator struct {
	mu      sync.Mutex
	keys    []string
	index   int
	counts  map[string]int
	resetAt map[string]time.Time
	budget  int
	window  time.Duration
	logger  *zap.Logger

	now func() time.Time
}

const (
	// DefaultKeyBudget stays under the per-key limit of the API plan.
	DefaultKeyBudget = 5500
	defaultWindow    = time.Minute
)

func NewKeyRotator(keys []string, budget int, logger *zap.Logger) (*KeyRotator, error) {
	if len(keys) == 0 {
		return nil, errors.New("helius: empty API key pool")
	}
	if budget <= 0 {
		budget = DefaultKeyBudget
	}

	r := &KeyRotator{
		keys:    keys,
		counts:  make(map[string]int, len(keys)),
		resetAt: make(map[string]time.Time, len(keys)),
		budget:  budget,
		window:  defaultWindow,
		logger:  logger.Named("key_rotator"),
		now:     time.Now,
	}
	start := r.now()
	for _, k := range keys {
		r.resetAt[k] = start
	}

	logger.Info("🔑 API key rotator initialized",
		zap.Int("keys", len(keys)),
		zap.Int("budget_per_window", budget))

	return r, nil
}

// Get returns the next key with remaining capacity, blocking until a window
// reset when all keys are exhausted. Respects context cancellation.
func (r *KeyRotator) Get(ctx context.Context) (string, error) {
	for {
		key, wait := r.tryAcquire()
		if key != "" {
			return key, nil
		}

		r.logger.Warn("All API keys at limit, waiting for reset",
			zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

// tryAcquire returns a key with capacity, or "" plus the time until the
// nearest window reset.
func (r *KeyRotator) tryAcquire() (string, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, key := range r.keys {
		if now.Sub(r.resetAt[key]) > r.window {
			r.counts[key] = 0
			r.resetAt[key] = now
		}
	}

	for range r.keys {
		key := r.keys[r.index]
		r.index = (r.index + 1) % len(r.keys)
		if r.counts[key] < r.budget {
			r.counts[key]++
			return key, 0
		}
	}

	minWait := r.window
	for _, key := range r.keys {
		if wait := r.window - now.Sub(r.resetAt[key]); wait < minWait {
			minWait = wait
		}
	}
	if minWait < time.Second {
		minWait = time.Second
	}
	return "", minWait
}

// Usage returns the current request count per key, useful for diagnostics.
func (r *KeyRotator) Usage() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	usage := make(map[string]int, len(r.keys))
	for _, key := range r.keys {
		usage[key] = r.counts[key]
	}
	return usage
}
