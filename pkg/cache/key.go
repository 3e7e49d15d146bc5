package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached T3 API response.
type CacheKey struct {
	// Endpoint is the API path (e.g., "/v2/packages/active")
	Endpoint string

	// QueryParams are the query parameters, including page and pageSize
	QueryParams url.Values

	// Subject scopes the entry to one caller, see Fingerprint
	Subject string
}

// String generates a deterministic cache key string.
// Format: t3:endpoint:query1=val1:query2=a,b:sub=abcd
//
// Example:
//
//	t3:v2/packages/active:licenseNumber=LIC-0001:page=2:sub=9f86d081884c7d65
func (k CacheKey) String() string {
	parts := []string{"t3"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add query params (sorted for determinism). Repeated params such as
	// filter keep their request order.
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	if k.Subject != "" {
		parts = append(parts, "sub="+k.Subject)
	}

	return strings.Join(parts, ":")
}

// Fingerprint derives a short, non-reversible subject from a bearer token.
// An empty token yields an empty subject.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
