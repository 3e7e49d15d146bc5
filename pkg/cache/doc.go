// Package cache provides a Redis-backed read-through cache for T3 API responses.
//
// Collection pages are idempotent GETs, so a page fetched once can be served
// again from Redis until its TTL elapses. Entries are scoped to the caller's
// bearer token so that two users never share cached regulated data.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint:    "/v2/packages/active",
//		QueryParams: url.Values{"licenseNumber": []string{"LIC-0001"}, "page": []string{"2"}},
//		Subject:     cache.Fingerprint(accessToken),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API
//	}
//
// # HTTP Response Caching
//
//	entry, err := cache.ResponseToEntry(resp, cache.DefaultTTL)
//	if err != nil {
//		return err
//	}
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// Responses carrying "Cache-Control: no-store" are never cached. A max-age
// directive or an Expires header overrides the default TTL.
//
// # Metrics
//
//   - t3_cache_lookups_total{endpoint,result} - Lookups by hit, miss or expired
//   - t3_cache_written_bytes_total{endpoint} - Encoded bytes written to Redis
//   - t3_cache_invalidated_total{endpoint} - Pages removed by InvalidateEndpoint
//   - t3_cache_errors_total{operation} - Cache operation errors
package cache
