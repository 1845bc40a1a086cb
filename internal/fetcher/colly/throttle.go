package collyfetcher

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleConfig controls the adaptive delay between requests.
type ThrottleConfig struct {
	Enabled           bool
	StartDelay        time.Duration
	MaxDelay          time.Duration
	TargetConcurrency float64
}

// Throttle spaces requests to the site. With adaptation enabled the delay
// follows the observed latency divided by the target concurrency, never
// going below the configured download delay.
type Throttle struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	delay    time.Duration
	minDelay time.Duration
	maxDelay time.Duration
	target   float64
	adaptive bool
}

// NewThrottle builds a Throttle starting at max(downloadDelay, cfg.StartDelay).
func NewThrottle(downloadDelay time.Duration, cfg ThrottleConfig) *Throttle {
	t := &Throttle{
		minDelay: downloadDelay,
		maxDelay: cfg.MaxDelay,
		target:   cfg.TargetConcurrency,
		adaptive: cfg.Enabled,
	}
	if t.target <= 0 {
		t.target = 1
	}
	if t.maxDelay < t.minDelay {
		t.maxDelay = t.minDelay
	}
	t.delay = downloadDelay
	if t.adaptive && cfg.StartDelay > t.delay {
		t.delay = min(cfg.StartDelay, t.maxDelay)
	}
	t.limiter = rate.NewLimiter(limitFor(t.delay), 1)
	return t
}

// Wait blocks until the next request may start.
func (t *Throttle) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait: %w", err)
	}
	return nil
}

// Observe adjusts the delay after a response.
func (t *Throttle) Observe(latency time.Duration, status int) {
	if !t.adaptive {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	target := time.Duration(float64(latency) / t.target)
	next := (t.delay + target) / 2
	next = max(next, target)
	next = min(max(next, t.minDelay), t.maxDelay)
	// Error responses are usually fast; they must not speed the crawl up.
	if status != http.StatusOK && next <= t.delay {
		return
	}
	t.delay = next
	t.limiter.SetLimit(limitFor(next))
}

// Delay returns the current delay.
func (t *Throttle) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}

func limitFor(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}
