package cache

import (
	"time"
)

// CacheEntry is one cached T3 response body.
type CacheEntry struct {
	Data        []byte    `json:"data"`
	ContentType string    `json:"content_type"`
	StatusCode  int       `json:"status_code"`
	Expires     time.Time `json:"expires"`
	CachedAt    time.Time `json:"cached_at"`
}

// IsExpired reports whether the entry is past its deadline.
func (e *CacheEntry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL is the time left before expiry, never negative.
func (e *CacheEntry) TTL() time.Duration {
	return max(time.Until(e.Expires), 0)
}

// Age is the time since the response was stored.
func (e *CacheEntry) Age() time.Duration {
	return time.Since(e.CachedAt)
}
