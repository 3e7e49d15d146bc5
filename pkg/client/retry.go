package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	t3RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	t3RetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "t3_retry_backoff_seconds",
		Help:    "Backoff duration before a retry",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	})

	t3RetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "t3_retry_exhausted_total",
		Help: "Total number of requests that exhausted their retry attempts",
	})
)

// RetryPolicy controls how transient failures are retried.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int `validate:"gte=1"`

	// BackoffFactor is the base delay; attempt n waits BackoffFactor * 2^n, ±20%.
	BackoffFactor time.Duration `validate:"gte=0"`

	// MaxBackoff caps a single wait, including server Retry-After hints.
	MaxBackoff time.Duration `validate:"gte=0"`

	// RetryStatuses lists the HTTP statuses that are retried.
	RetryStatuses []int
}

// DefaultRetryStatuses are the statuses retried by DefaultRetryPolicy.
var DefaultRetryStatuses = []int{408, 409, 425, 429, 500, 502, 503, 504}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		BackoffFactor: 500 * time.Millisecond,
		MaxBackoff:    30 * time.Second,
		RetryStatuses: slices.Clone(DefaultRetryStatuses),
	}
}

// retriesStatus reports whether status is in the retry set.
func (p RetryPolicy) retriesStatus(status int) bool {
	return slices.Contains(p.RetryStatuses, status)
}

// delay returns the jittered exponential backoff for a zero-based retry number.
func (p RetryPolicy) delay(retry int) time.Duration {
	base := float64(p.BackoffFactor) * math.Pow(2, float64(retry))
	if p.MaxBackoff > 0 && base > float64(p.MaxBackoff) {
		base = float64(p.MaxBackoff)
	}

	// Add jitter (±20% randomness)
	return time.Duration(base * (0.8 + rand.Float64()*0.4))
}

// checkRetry implements retryablehttp.CheckRetry.
func (p RetryPolicy) checkRetry(logger zerolog.Logger) retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		// Do not retry on context.Canceled or context.DeadlineExceeded
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		if err != nil {
			retry, checkErr := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
			if retry {
				t3RetriesTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
				logger.Warn().Err(err).Msg("Request failed, retrying")
			}
			return retry, checkErr
		}

		if p.retriesStatus(resp.StatusCode) {
			class := classifyStatus(resp.StatusCode)
			if class == "" || class == ErrorClassClient {
				// 408/409/425 are transient despite being 4xx
				class = ErrorClassServer
			}
			t3RetriesTotal.WithLabelValues(string(class)).Inc()
			logger.Warn().
				Str("endpoint", resp.Request.URL.Path).
				Int("status_code", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("Retryable response")
			return true, nil
		}

		return false, nil
	}
}

// backoff implements retryablehttp.Backoff. A Retry-After header in seconds
// on 429 and 503 responses wins over the exponential delay.
func (p RetryPolicy) backoff(_, _ time.Duration, attemptNum int, resp *http.Response) time.Duration {
	wait := p.delay(attemptNum)

	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			wait = time.Duration(secs) * time.Second
			if p.MaxBackoff > 0 && wait > p.MaxBackoff {
				wait = p.MaxBackoff
			}
		}
	}

	t3RetryBackoffSeconds.Observe(wait.Seconds())
	return wait
}

// errorHandler hands the final response back to the caller once retries run
// out so that the status and body can be turned into an APIError.
func (p RetryPolicy) errorHandler(logger zerolog.Logger) retryablehttp.ErrorHandler {
	return func(resp *http.Response, err error, numTries int) (*http.Response, error) {
		if err != nil && resp != nil {
			resp.Body.Close()
			resp = nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		if numTries < p.MaxAttempts {
			// Gave up early on a non-retryable transport error
			return resp, err
		}

		t3RetryExhaustedTotal.Inc()
		logger.Warn().
			Err(err).
			Int("attempts", numTries).
			Msg("Retry attempts exhausted")

		if err != nil {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, numTries, err)
		}
		return resp, nil
	}
}

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger zerolog.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Trace().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
