// Package ratelimit implements a request dispatch gate that spaces outgoing
// T3 API requests evenly in time.
//
// A Limiter admits at most one request per 1/rate seconds, measured from the
// previous admission. It is safe for concurrent use and is meant to be shared
// by all workers of a single collection load (or by a single client).
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request gating.
var (
	t3RateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "t3_rate_limit_wait_seconds",
		Help:    "Time spent waiting for the request rate limiter",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	t3RateLimitAcquiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "t3_rate_limit_acquires_total",
		Help: "Total number of rate limiter acquisitions",
	})
)

// Limiter is a sliding single-slot gate.
// A nil *Limiter, or one built with a non-positive rate, never blocks.
type Limiter struct {
	limiter *rate.Limiter
	rate    float64
}

// New creates a limiter admitting requestsPerSecond acquisitions per second.
// A value <= 0 disables throttling.
func New(requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		return &Limiter{}
	}

	// Burst 1 keeps a single slot: each admission must wait a full interval
	// after the previous one.
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		rate:    requestsPerSecond,
	}
}

// Enabled reports whether the limiter throttles at all.
func (l *Limiter) Enabled() bool {
	return l != nil && l.limiter != nil
}

// Rate returns the configured requests per second, 0 when disabled.
func (l *Limiter) Rate() float64 {
	if l == nil {
		return 0
	}
	return l.rate
}

// Interval returns the minimum spacing between two admissions.
func (l *Limiter) Interval() time.Duration {
	if !l.Enabled() {
		return 0
	}
	return time.Duration(float64(time.Second) / l.rate)
}

// Acquire blocks until the caller may dispatch a request.
func (l *Limiter) Acquire() {
	// Background is never cancelled, so Wait cannot fail here.
	_ = l.Wait(context.Background())
}

// Wait blocks until the caller may dispatch a request or ctx is done.
// It returns ctx's error if the context ends first.
func (l *Limiter) Wait(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	t3RateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	t3RateLimitAcquiresTotal.Inc()
	return nil
}
