package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCacheMiss is returned when a page is not cached or has expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned when a stored value cannot be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// scanBatch is the COUNT hint used while walking keys to invalidate.
const scanBatch = 100

// Manager stores T3 responses in Redis.
type Manager struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewManager returns a Manager backed by redisClient. It panics on nil.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis:  redisClient,
		logger: log.With().Str("component", "t3-cache").Logger(),
	}
}

// Ping checks that Redis is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Get returns the cached response for key, or ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	raw, err := m.redis.Get(ctx, key.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		t3CacheLookupsTotal.WithLabelValues(key.Endpoint, "miss").Inc()
		return nil, ErrCacheMiss
	case err != nil:
		t3CacheErrorsTotal.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry := &CacheEntry{}
	if err := json.Unmarshal(raw, entry); err != nil {
		t3CacheErrorsTotal.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis expiry is second-granular; the entry carries the exact deadline
	if entry.IsExpired() {
		if err := m.Delete(ctx, key); err != nil {
			m.logger.Debug().Err(err).Str("endpoint", key.Endpoint).Msg("Failed to drop expired entry")
		}
		t3CacheLookupsTotal.WithLabelValues(key.Endpoint, "expired").Inc()
		return nil, ErrCacheMiss
	}

	t3CacheLookupsTotal.WithLabelValues(key.Endpoint, "hit").Inc()
	return entry, nil
}

// Set stores entry until its Expires time. Already expired entries are
// not written.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		t3CacheErrorsTotal.WithLabelValues("encode").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), raw, ttl).Err(); err != nil {
		t3CacheErrorsTotal.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	t3CacheWrittenBytesTotal.WithLabelValues(key.Endpoint).Add(float64(len(raw)))
	return nil
}

// Delete removes one cached response.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		t3CacheErrorsTotal.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// InvalidateEndpoint removes every cached page of an endpoint across all
// licenses, filters and subjects, and returns how many keys were removed.
func (m *Manager) InvalidateEndpoint(ctx context.Context, endpoint string) (int, error) {
	prefix := CacheKey{Endpoint: endpoint}.String()

	// The bare key has no query or subject suffix, so the pattern misses it
	keys := []string{prefix}
	iter := m.redis.Scan(ctx, 0, prefix+":*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		t3CacheErrorsTotal.WithLabelValues("scan").Inc()
		return 0, fmt.Errorf("redis scan: %w", err)
	}

	removed, err := m.redis.Unlink(ctx, keys...).Result()
	if err != nil {
		t3CacheErrorsTotal.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("redis unlink: %w", err)
	}

	t3CacheInvalidatedTotal.WithLabelValues(endpoint).Add(float64(removed))
	m.logger.Debug().Str("endpoint", endpoint).Int64("removed", removed).Msg("Invalidated cached pages")
	return int(removed), nil
}

// UpdateTTL moves the expiry of a cached response to newExpires.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	entry.Expires = newExpires
	return m.Set(ctx, key, entry)
}
