// Package ratelimit bounds the outbound call rate per marketplace API
// category using token buckets.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"marketsync/internal/config"
)

// Category identifies one remote API rate-limit bucket.
type Category string

const (
	CategoryOrders   Category = "orders"
	CategoryOffers   Category = "offers"
	CategoryReturns  Category = "returns"
	CategoryInvoices Category = "invoices"
)

// Limiter holds one token bucket per category. The remote limits apply to the
// whole credential population, so a single Limiter is shared by all accounts
// and workers; *rate.Limiter is safe for concurrent use.
type Limiter struct {
	buckets map[Category]*rate.Limiter
}

func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		buckets: map[Category]*rate.Limiter{
			CategoryOrders:   newBucket(cfg.Orders, cfg.Burst),
			CategoryOffers:   newBucket(cfg.Offers, cfg.Burst),
			CategoryReturns:  newBucket(cfg.Returns, cfg.Burst),
			CategoryInvoices: newBucket(cfg.Invoices, cfg.Burst),
		},
	}
}

func newBucket(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Acquire blocks until the category grants a token or ctx is done.
func (l *Limiter) Acquire(ctx context.Context, category Category) error {
	bucket, ok := l.buckets[category]
	if !ok {
		return fmt.Errorf("unknown rate limit category: %s", category)
	}
	return bucket.Wait(ctx)
}

// Rate returns the configured requests-per-second cap for a category.
func (l *Limiter) Rate(category Category) float64 {
	bucket, ok := l.buckets[category]
	if !ok {
		return 0
	}
	return float64(bucket.Limit())
}
