package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultTTL is the fallback TTL when neither an Expires header nor a
	// manager TTL is available.
	DefaultTTL = 5 * time.Minute
)

// ResponseToEntry converts an HTTP response to a CacheEntry.
// The response body is read and then restored for the caller.
func ResponseToEntry(resp *http.Response, fallbackTTL time.Duration) (*CacheEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &CacheEntry{
		Data:       body,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Expires:    parseExpires(resp.Header, fallbackTTL),
		CachedAt:   time.Now(),
	}, nil
}

// EntryToResponse rebuilds an HTTP response from a cache entry.
// The X-Cache header is set to "HIT".
func EntryToResponse(entry *CacheEntry) *http.Response {
	headers := entry.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set("X-Cache", "HIT")
	headers.Set("Content-Length", strconv.Itoa(len(entry.Data)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode)),
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        headers,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
	}
}

// parseExpires returns the expiry from the Expires header, or now + fallbackTTL
// when the header is missing or unparseable.
func parseExpires(headers http.Header, fallbackTTL time.Duration) time.Time {
	if fallbackTTL <= 0 {
		fallbackTTL = DefaultTTL
	}

	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return time.Now().Add(fallbackTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return time.Now().Add(fallbackTTL)
	}

	// Already expired - nothing to keep
	if expires.Before(time.Now()) {
		return time.Now()
	}

	return expires
}
