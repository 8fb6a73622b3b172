// Package ratelimit enforces a per-provider token-bucket admission
// limit in front of the coordinator, so a single tab hammering one
// provider cannot starve turns bound for the others. It is grounded on
// the token-bucket pattern golang.org/x/time/rate implements directly;
// the per-key map just keys one bucket per ProviderID instead of one
// per arbitrary string key.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/devon-ng/gatewaycore/internal/config"
)

// Config sets the token-bucket parameters for one provider.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Limiter holds one rate.Limiter per ProviderID. Providers with no
// configured limit are unrestricted.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[config.ProviderID]*rate.Limiter
}

// New builds a Limiter from a per-provider configuration map. A
// provider absent from limits is never throttled.
func New(limits map[config.ProviderID]Config) *Limiter {
	l := &Limiter{limiters: make(map[config.ProviderID]*rate.Limiter, len(limits))}
	for providerID, cfg := range limits {
		if cfg.RequestsPerSecond <= 0 {
			continue
		}
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		l.limiters[providerID] = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return l
}

// Wait blocks until a token is available for providerID, or returns
// ctx.Err() if the context is cancelled first. Providers with no
// configured limiter return immediately.
func (l *Limiter) Wait(ctx context.Context, providerID config.ProviderID) error {
	l.mu.RLock()
	limiter, ok := l.limiters[providerID]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

// Allow reports whether a turn for providerID may start right now,
// without blocking. Used where the caller wants to reject fast rather
// than queue (e.g. a burst-protection check ahead of Wait).
func (l *Limiter) Allow(providerID config.ProviderID) bool {
	l.mu.RLock()
	limiter, ok := l.limiters[providerID]
	l.mu.RUnlock()
	if !ok {
		return true
	}
	return limiter.Allow()
}
