package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	if policy.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", policy.MaxAttempts)
	}
	if policy.BackoffFactor != 500*time.Millisecond {
		t.Errorf("BackoffFactor = %v, want 500ms", policy.BackoffFactor)
	}
	if policy.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", policy.MaxBackoff)
	}
	for _, status := range []int{429, 500, 502, 503, 504} {
		if !policy.retriesStatus(status) {
			t.Errorf("status %d should be retried", status)
		}
	}
	for _, status := range []int{400, 401, 403, 404} {
		if policy.retriesStatus(status) {
			t.Errorf("status %d should not be retried", status)
		}
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	policy := RetryPolicy{BackoffFactor: 100 * time.Millisecond, MaxBackoff: time.Second}

	tests := []struct {
		retry int
		base  time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{5, time.Second}, // capped
	}

	for _, tt := range tests {
		for i := 0; i < 20; i++ {
			got := policy.delay(tt.retry)
			lo := time.Duration(float64(tt.base) * 0.8)
			hi := time.Duration(float64(tt.base) * 1.2)
			if got < lo || got > hi {
				t.Fatalf("delay(%d) = %v, want within [%v, %v]", tt.retry, got, lo, hi)
			}
		}
	}
}

func TestRetryPolicy_BackoffRetryAfter(t *testing.T) {
	policy := RetryPolicy{BackoffFactor: 10 * time.Millisecond, MaxBackoff: 5 * time.Second}

	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"2"}},
	}
	if got := policy.backoff(0, 0, 0, resp); got != 2*time.Second {
		t.Errorf("backoff() = %v, want 2s", got)
	}

	resp.Header.Set("Retry-After", "60")
	if got := policy.backoff(0, 0, 0, resp); got != 5*time.Second {
		t.Errorf("backoff() = %v, want capped 5s", got)
	}

	// Retry-After is ignored on other statuses
	resp.StatusCode = http.StatusInternalServerError
	if got := policy.backoff(0, 0, 0, resp); got > 12*time.Millisecond {
		t.Errorf("backoff() = %v, want exponential delay", got)
	}
}

func TestRetryPolicy_CheckRetry(t *testing.T) {
	policy := DefaultRetryPolicy()
	check := policy.checkRetry(zerolog.Nop())
	req := &http.Request{URL: &url.URL{Path: "/v2/packages/active"}}

	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{name: "ok", status: 200, want: false},
		{name: "bad request", status: 400, want: false},
		{name: "unauthorized", status: 401, want: false},
		{name: "rate limited", status: 429, want: true},
		{name: "server error", status: 500, want: true},
		{name: "unavailable", status: 503, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, err := check(context.Background(), &http.Response{StatusCode: tt.status, Request: req}, nil)
			if err != nil {
				t.Fatalf("checkRetry() error = %v", err)
			}
			if retry != tt.want {
				t.Errorf("checkRetry() = %v, want %v", retry, tt.want)
			}
		})
	}
}

func TestRetryPolicy_CheckRetryCancelled(t *testing.T) {
	check := DefaultRetryPolicy().checkRetry(zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry, err := check(ctx, nil, errors.New("connection reset"))
	if retry {
		t.Error("checkRetry() should not retry a cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRetryPolicy_ErrorHandler(t *testing.T) {
	policy := DefaultRetryPolicy()
	handler := policy.errorHandler(zerolog.Nop())

	_, err := handler(nil, errors.New("connection refused"), policy.MaxAttempts)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}

	resp := &http.Response{StatusCode: 503}
	got, err := handler(resp, nil, policy.MaxAttempts)
	if err != nil || got != resp {
		t.Errorf("handler() = (%v, %v), want final response passed through", got, err)
	}

	_, err = handler(nil, context.DeadlineExceeded, 1)
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want bare context error", err)
	}
}
