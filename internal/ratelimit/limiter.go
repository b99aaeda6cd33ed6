package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// SupplierLimiter throttles outbound calls per supplier code.
type SupplierLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	defaults RateLimitConfig
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
	}
}

func NewSupplierLimiter(config RateLimitConfig) *SupplierLimiter {
	return &SupplierLimiter{
		limiters: make(map[string]*rate.Limiter),
		defaults: config,
	}
}

func NewSupplierLimiterWithDefaults() *SupplierLimiter {
	return NewSupplierLimiter(DefaultConfig())
}

func (p *SupplierLimiter) GetLimiter(supplier string) *rate.Limiter {
	p.mu.RLock()
	limiter, exists := p.limiters[supplier]
	p.mu.RUnlock()

	if exists {
		return limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, exists = p.limiters[supplier]; exists {
		return limiter
	}

	limiter = newLimiter(p.defaults.RequestsPerSecond, p.defaults.BurstSize)
	p.limiters[supplier] = limiter
	return limiter
}

// SetSupplierLimit configures a supplier. An existing limiter is retuned in
// place so waiters already queued on it keep their reservations. rps <= 0
// removes the limit.
func (p *SupplierLimiter) SetSupplierLimit(supplier string, rps float64, burst int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, ok := p.limiters[supplier]; ok {
		limit, b := limitOf(rps, burst)
		limiter.SetLimit(limit)
		limiter.SetBurst(b)
		return
	}
	p.limiters[supplier] = newLimiter(rps, burst)
}

func (p *SupplierLimiter) Wait(ctx context.Context, supplier string) error {
	return p.GetLimiter(supplier).Wait(ctx)
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	return rate.NewLimiter(limitOf(rps, burst))
}

func limitOf(rps float64, burst int) (rate.Limit, int) {
	if rps <= 0 {
		return rate.Inf, 0
	}
	if burst < 1 {
		burst = 1
	}
	return rate.Limit(rps), burst
}
