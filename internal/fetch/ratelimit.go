package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pokedexfr/ingest/internal/metrics"
)

// limiter applies a token-bucket rate limit per upstream host so a seed
// run cannot hammer the catalog or wiki APIs harder than configured.
type limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// newLimiter builds a per-host limiter. A non-positive rps disables
// throttling.
func newLimiter(rps float64, burst int) *limiter {
	l := rate.Limit(rps)
	if rps <= 0 {
		l = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   l,
		burst:   burst,
	}
}

// wait blocks until a token is available for the URL's host.
func (l *limiter) wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	l.mu.Lock()
	bucket, ok := l.buckets[host]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[host] = bucket
	}
	l.mu.Unlock()

	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		metrics.ObserveThrottle(delay)
	}
	return nil
}
