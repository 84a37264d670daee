package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketsync/internal/config"
)

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{Orders: 12, Offers: 3, Returns: 5, Invoices: 3, Burst: 1}
}

func TestAcquire_UnknownCategory(t *testing.T) {
	l := New(testConfig())
	if err := l.Acquire(context.Background(), Category("bogus")); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestAcquire_RespectsCancellation(t *testing.T) {
	l := New(config.RateLimitConfig{Orders: 0.001, Offers: 1, Returns: 1, Invoices: 1, Burst: 1})
	// Drain the single burst token so the next call must wait ~1000s.
	if err := l.Acquire(context.Background(), CategoryOrders); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx, CategoryOrders); err == nil {
		t.Fatalf("expected context error from blocked acquire")
	}
}

func TestAcquire_BoundsRate(t *testing.T) {
	// 50/s with burst 1: 20 acquires need at least 19 refill intervals.
	l := New(config.RateLimitConfig{Orders: 50, Offers: 1, Returns: 1, Invoices: 1, Burst: 1})
	start := time.Now()
	for i := 0; i < 20; i++ {
		if err := l.Acquire(context.Background(), CategoryOrders); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)
	if elapsed < 300*time.Millisecond {
		t.Fatalf("20 acquires at 50/s finished in %v, limiter not pacing", elapsed)
	}
}

func TestAcquire_ConcurrentCallersShareBucket(t *testing.T) {
	l := New(config.RateLimitConfig{Orders: 100, Offers: 1, Returns: 1, Invoices: 1, Burst: 1})
	const callers = 4
	const perCaller = 10
	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, callers*perCaller)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perCaller; j++ {
				errs <- l.Acquire(context.Background(), CategoryOrders)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent acquire: %v", err)
		}
	}
	// 40 tokens at 100/s with burst 1 cannot complete faster than ~390ms.
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Fatalf("40 concurrent acquires finished in %v, bucket not shared", elapsed)
	}
}
