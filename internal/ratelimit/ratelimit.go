// Package ratelimit spaces outbound provider requests.
//
// The sync engine's page walk is strictly sequential (each request needs
// the previous response's continuation flag), so a fixed single-slot
// spacing is sufficient: no token bucket with bursts, one request per
// interval.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval matches the pause the provider tolerates between
// successive page fetches.
const DefaultInterval = 500 * time.Millisecond

// Pacer enforces a minimum interval between consecutive Wait calls.
// The first call never blocks. Not intended for concurrent callers.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer with the given minimum inter-request interval.
// Non-positive intervals fall back to DefaultInterval.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	// Burst of one: a single slot refills every interval, so calls are
	// spaced at least interval apart after the free first call.
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the interval since the previous Wait has elapsed,
// or the context is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
