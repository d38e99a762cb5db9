// Package testutil provides testing utilities for the Exorde client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CursorParam is the query parameter the mock uses in its next links.
const CursorParam = "cursor"

// MockAPIResponse defines the behavior for a mock endpoint response.
type MockAPIResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Call is one request received by the mock.
type Call struct {
	Path   string
	Query  url.Values
	Header http.Header
}

// MockAPI is a configurable mock of the paginated analytics API.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	calls    []Call
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.calls = append(mock.calls, Call{
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		writeResponse(w, MockAPIResponse{
			StatusCode: http.StatusNotFound,
			Body:       fmt.Sprintf(`{"error": "no route for %s"}`, r.URL.Path),
		})
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Endpoint returns the absolute URL of path on the mock server.
func (m *MockAPI) Endpoint(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears the recorded calls.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockAPIResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetPages serves pages at path. Each page is a list of raw JSON items; every
// page but the last links to the next one through an absolute next link.
func (m *MockAPI) SetPages(path string, pages ...[]string) {
	m.SetPagesWithFailure(path, -1, MockAPIResponse{}, pages...)
}

// SetPagesWithFailure serves pages at path like SetPages, except that the page
// with zero-based index failAt is answered with resp.
func (m *MockAPI) SetPagesWithFailure(path string, failAt int, resp MockAPIResponse, pages ...[]string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		index := 0
		if cursor := r.URL.Query().Get(CursorParam); cursor != "" {
			n, err := strconv.Atoi(cursor)
			if err != nil || n < 0 || n >= len(pages) {
				writeResponse(w, MockAPIResponse{StatusCode: http.StatusBadRequest, Body: `{"error": "bad cursor"}`})
				return
			}
			index = n
		}

		if index == failAt {
			writeResponse(w, resp)
			return
		}

		next := ""
		if index+1 < len(pages) {
			next = fmt.Sprintf("http://%s%s?%s=%d", r.Host, path, CursorParam, index+1)
		}
		writeResponse(w, NewHealthyResponse(PageBody(pages[index], next)))
	})
}

// Calls returns a copy of the requests received so far, in arrival order.
func (m *MockAPI) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Call(nil), m.calls...)
}

// CallPaths returns the paths of the received requests, in arrival order.
func (m *MockAPI) CallPaths() []string {
	calls := m.Calls()
	paths := make([]string, len(calls))
	for i, c := range calls {
		paths[i] = c.Path
	}
	return paths
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Header
}

// PageBody renders a page document. An empty next omits the pagination object.
func PageBody(items []string, next string) string {
	var b strings.Builder
	b.WriteString(`{"items": [`)
	b.WriteString(strings.Join(items, ","))
	b.WriteString(`]`)
	if next != "" {
		fmt.Fprintf(&b, `, "pagination": {"next": %q}`, next)
	}
	b.WriteString(`}`)
	return b.String()
}

// NewHealthyResponse creates a standard 200 OK response with quota headers.
func NewHealthyResponse(data string) MockAPIResponse {
	return MockAPIResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "100",
			"X-RateLimit-Reset":     "60",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockAPIResponse {
	return MockAPIResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "30",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockAPIResponse {
	return MockAPIResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "95",
			"X-RateLimit-Reset":     "60",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

func writeResponse(w http.ResponseWriter, resp MockAPIResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}
