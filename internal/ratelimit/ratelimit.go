// Package ratelimit paces requests to external services that enforce
// request-per-minute ceilings, keyed by service name so adapters hitting
// the same backend share one budget.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum delay between consecutive requests to the same
// service. The first request per key proceeds immediately.
type Pacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	minDelay time.Duration
}

// NewPacer creates a pacer enforcing minDelay between requests per key.
// A zero or negative delay disables pacing.
func NewPacer(minDelay time.Duration) *Pacer {
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		minDelay: minDelay,
	}
}

// Wait blocks until the next request to the given service is allowed, or
// until the context is cancelled.
func (p *Pacer) Wait(ctx context.Context, key string) error {
	p.mu.Lock()
	lim, ok := p.limiters[key]
	if !ok {
		// rate.Every treats a non-positive interval as unlimited.
		lim = rate.NewLimiter(rate.Every(p.minDelay), 1)
		p.limiters[key] = lim
	}
	p.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return fmt.Errorf("pacing %s: %w", key, err)
	}
	return nil
}
