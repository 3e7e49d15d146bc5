// Package client provides the T3 API HTTP client with retries, optional
// response caching, and typed access to collection endpoints.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/classvsoftware/t3api-utils/pkg/cache"
	"github.com/classvsoftware/t3api-utils/pkg/ratelimit"
)

// Prometheus metrics for T3 client operations.
var (
	t3RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3_requests_total",
		Help: "Total T3 API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	t3RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "t3_request_duration_seconds",
		Help:    "T3 API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	t3ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3_errors_total",
		Help: "Total T3 API errors by class",
	}, []string{"class"})
)

// DefaultHost is the production T3 API.
const DefaultHost = "https://api.trackandtrace.tools"

// DefaultUserAgent identifies this library to the API.
const DefaultUserAgent = "t3api-utils/go"

var validate = validator.New()

// Client is the T3 API client. It is safe for concurrent use.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	config  Config
	cache   *cache.Manager
	limiter *ratelimit.Limiter
	logger  zerolog.Logger

	mu    sync.RWMutex
	token string
}

// ProxyConfig configures outbound proxies. Empty fields fall back to the
// HTTP_PROXY, HTTPS_PROXY and NO_PROXY environment variables.
type ProxyConfig struct {
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// Config holds the client configuration.
type Config struct {
	// Host is the API base URL
	Host string `validate:"required,url"`

	// UserAgent header sent with every request
	UserAgent string `validate:"required"`

	// Timeout per HTTP attempt
	Timeout time.Duration `validate:"gt=0"`

	// InsecureSkipVerify disables TLS certificate verification
	InsecureSkipVerify bool

	// Retry policy for transient failures
	Retry RetryPolicy

	// RateLimit is the default requests per second for collection loads
	// made through this client (0 = unlimited).
	RateLimit float64 `validate:"gte=0"`

	// Proxy settings
	Proxy ProxyConfig

	// RequestID attaches a fresh X-Request-ID header to every request
	RequestID bool

	// Headers are added to every request
	Headers map[string]string

	// Redis enables the read-through response cache when set
	Redis *redis.Client `validate:"-"`

	// CacheTTL is the default TTL of cached responses
	CacheTTL time.Duration `validate:"gte=0"`
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Host:      DefaultHost,
		UserAgent: DefaultUserAgent,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryPolicy(),
		RequestID: true,
		CacheTTL:  cache.DefaultTTL,
	}
}

// New creates a new T3 API client.
func New(cfg Config) (*Client, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	logger := log.With().Str("component", "t3-client").Logger()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyFunc(cfg.Proxy)
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
	retryClient.RetryMax = cfg.Retry.MaxAttempts - 1
	retryClient.CheckRetry = cfg.Retry.checkRetry(logger)
	retryClient.Backoff = cfg.Retry.backoff
	retryClient.ErrorHandler = cfg.Retry.errorHandler(logger)
	retryClient.Logger = retryLogger{logger: logger}

	c := &Client{
		http:    retryClient,
		baseURL: strings.TrimSuffix(cfg.Host, "/"),
		config:  cfg,
		limiter: ratelimit.New(cfg.RateLimit),
		logger:  logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
		if c.config.CacheTTL <= 0 {
			c.config.CacheTTL = cache.DefaultTTL
		}
	}

	return c, nil
}

// SetAccessToken sets the bearer token used for authenticated requests.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// ClearAccessToken removes the bearer token.
func (c *Client) ClearAccessToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// AccessToken returns the current bearer token.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// IsAuthenticated reports whether a bearer token is set.
func (c *Client) IsAuthenticated() bool {
	return c.AccessToken() != ""
}

// Host returns the API base URL.
func (c *Client) Host() string {
	return c.baseURL
}

// RequestOptions describes a single API request.
type RequestOptions struct {
	// Method defaults to GET
	Method string

	// Query parameters
	Query url.Values

	// Body is JSON-encoded when non-nil
	Body any

	// Headers added to this request only
	Headers map[string]string

	// ExpectedStatus lists accepted statuses (default: any 2xx)
	ExpectedStatus []int

	// Public skips the authentication check and Authorization header
	Public bool

	// NoCache bypasses the response cache
	NoCache bool
}

// Do performs an API request and returns the raw response body.
// Non-accepted statuses are returned as *APIError.
func (c *Client) Do(ctx context.Context, endpoint string, opts RequestOptions) ([]byte, error) {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	token := c.AccessToken()
	if !opts.Public && token == "" {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, ErrNotAuthenticated)
	}

	// Start request timing
	startTime := time.Now()
	defer func() {
		t3RequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Check cache
	var cacheKey cache.CacheKey
	useCache := c.cache != nil && method == http.MethodGet && !opts.NoCache
	if useCache {
		cacheKey = cache.CacheKey{
			Endpoint:    endpoint,
			QueryParams: opts.Query,
			Subject:     cache.Fingerprint(token),
		}
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("endpoint", endpoint).Dur("age", entry.Age()).Msg("Cache hit")
			t3RequestsTotal.WithLabelValues(endpoint, "cache").Inc()
			return entry.Data, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	req, err := c.newRequest(ctx, method, endpoint, token, opts)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("Executing T3 request")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", method, endpoint, ctx.Err())
		}
		t3ErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		t3RequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Method:     method,
			Endpoint:   endpoint,
			RequestID:  req.Header.Get("X-Request-ID"),
			Err:        err,
		}
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	t3RequestsTotal.WithLabelValues(endpoint, status).Inc()

	if !accepts(opts.ExpectedStatus, resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		errClass := classifyStatus(resp.StatusCode)
		if errClass == "" {
			errClass = ErrorClassClient
		}
		t3ErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("T3 request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    extractErrorMessage(body),
			Method:     method,
			Endpoint:   endpoint,
			RequestID:  req.Header.Get("X-Request-ID"),
		}
	}

	if useCache && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp, c.config.CacheTTL)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().Str("endpoint", endpoint).Dur("ttl", entry.TTL()).Msg("Cached response")
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Method:     method,
			Endpoint:   endpoint,
			Err:        err,
		}
	}

	return body, nil
}

// newRequest builds a retryable request with the standard headers.
func (c *Client) newRequest(ctx context.Context, method, endpoint, token string, opts RequestOptions) (*retryablehttp.Request, error) {
	target := c.baseURL + endpoint
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	var body interface{}
	if opts.Body != nil {
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.RequestID {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if !opts.Public && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// accepts reports whether status is expected. An empty list accepts any 2xx.
func accepts(expected []int, status int) bool {
	if len(expected) == 0 {
		return status >= 200 && status < 300
	}
	for _, s := range expected {
		if s == status {
			return true
		}
	}
	return false
}

// GetData performs a request and decodes the JSON response into out.
// out may be nil to discard the body.
func (c *Client) GetData(ctx context.Context, endpoint string, opts RequestOptions, out any) error {
	body, err := c.Do(ctx, endpoint, opts)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// InvalidateCache drops every cached page of endpoint.
// It is a no-op when caching is disabled.
func (c *Client) InvalidateCache(ctx context.Context, endpoint string) error {
	if c.cache == nil {
		return nil
	}
	removed, err := c.cache.InvalidateEndpoint(ctx, endpoint)
	if err != nil {
		return err
	}
	c.logger.Debug().Str("endpoint", endpoint).Int("removed", removed).Msg("Cache invalidated")
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.HTTPClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.http.HTTPClient = client
}

// GetCache returns the cache manager, nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
