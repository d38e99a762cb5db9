package cache

import (
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every cache key in Redis.
const keyPrefix = "exorde"

// CacheKey identifies a cached API page.
type CacheKey struct {
	// Host is the API host (e.g., "api.exorde.io")
	Host string

	// Endpoint is the request path (e.g., "/volume/history")
	Endpoint string

	// QueryParams are the query parameters, filters and cursor included
	QueryParams url.Values
}

// KeyForURL builds the cache key of a fully resolved request URL.
func KeyForURL(u *url.URL) CacheKey {
	return CacheKey{
		Host:        u.Host,
		Endpoint:    u.Path,
		QueryParams: u.Query(),
	}
}

// String generates a deterministic cache key string.
// Format: exorde:host:path:query1=val1:query2=val2
//
// Example:
//
//	exorde:api.exorde.io:volume/history:interval=60:keywords=btc,bitcoin
func (k CacheKey) String() string {
	parts := []string{keyPrefix}

	if k.Host != "" {
		parts = append(parts, k.Host)
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, key+"="+strings.Join(k.QueryParams[key], ","))
		}
	}

	return strings.Join(parts, ":")
}
