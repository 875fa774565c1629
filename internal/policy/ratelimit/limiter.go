// Package ratelimit spaces out requests so each worker keeps a fixed delay
// between calls to the same host.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/JakeFAU/venue-harvester/internal/crawler"
	"github.com/JakeFAU/venue-harvester/internal/metrics"
	"golang.org/x/time/rate"
)

// Config holds pacing configuration.
type Config struct {
	// Delay is the minimum gap between two requests to one host. Zero disables pacing.
	Delay time.Duration
}

// Limiter tracks one token bucket per host. A Limiter is owned by a single
// worker, so the delay applies per worker rather than globally.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	every := rate.Inf
	if cfg.Delay > 0 {
		every = rate.Every(cfg.Delay)
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
	}
}

// Wait blocks until the host of rawURL may be contacted again.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.every, 1)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePacerDelay(host, waited)
	}
	return nil
}

// PacedFetcher waits on a Limiter before delegating each fetch.
type PacedFetcher struct {
	next    crawler.Fetcher
	limiter *Limiter
}

// NewPacedFetcher wraps next with limiter.
func NewPacedFetcher(next crawler.Fetcher, limiter *Limiter) *PacedFetcher {
	return &PacedFetcher{next: next, limiter: limiter}
}

// Fetch implements crawler.Fetcher. A canceled wait is reported as a transient failure.
func (f *PacedFetcher) Fetch(ctx context.Context, addr crawler.SourceAddress) crawler.FetchResult {
	if err := f.limiter.Wait(ctx, addr.URL); err != nil {
		return crawler.FetchResult{Outcome: crawler.OutcomeTransientFailure, Err: err}
	}
	return f.next.Fetch(ctx, addr)
}
