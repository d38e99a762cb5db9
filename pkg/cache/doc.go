// Package cache provides a Redis-backed cache for analytics API pages.
//
// History endpoints answer for a fixed date range, so a page fetched once can be
// served again without spending API quota. The manager stores successful GET
// responses keyed by host, path and query, never by credentials.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, 10*time.Minute)
//
//	key := cache.KeyForURL(req.URL)
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then
//		entry, _ = cache.ResponseToEntry(resp, manager.DefaultTTL())
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # TTL
//
// An Expires header on the response wins. Without one the manager's default TTL
// applies. Entries that are already expired are never written.
//
// # Metrics
//
//   - exorde_cache_hits_total - Cache hits
//   - exorde_cache_misses_total - Cache misses
//   - exorde_cache_size_bytes - Bytes written to the cache
//   - exorde_cache_errors_total{operation} - Cache operation errors
package cache
