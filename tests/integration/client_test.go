//go:build integration

package integration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/Sternrassler/exorde-client/internal/testutil"
	"github.com/Sternrassler/exorde-client/pkg/cache"
	"github.com/Sternrassler/exorde-client/pkg/client"
	"github.com/Sternrassler/exorde-client/pkg/pagination"
	"github.com/Sternrassler/exorde-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const historyPath = "/volume/history"

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newClient(t *testing.T, redisClient *redis.Client) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig("integration-key")
	cfg.Redis = redisClient
	cfg.RequestsPerSecond = 0

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func historySpec(endpoint string) pagination.RequestSpec {
	return pagination.RequestSpec{
		Endpoint: endpoint,
		Filters: pagination.Filters{
			StartDate: "2024-07-01T00:00:00.000Z",
			EndDate:   "2024-08-01T00:00:00.000Z",
			Interval:  60,
			Limit:     2,
			Keywords:  "$btc,bitcoin",
			Condition: pagination.ConditionOr,
		},
	}
}

// TestFullFetchFlow tests the complete flow: Rate Gate → API → Cache Update → Cache Hit.
func TestFullFetchFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetPages(historyPath,
		[]string{`{"endDate":"2024-07-01T01:00:00.000Z"}`, `{"endDate":"2024-07-01T02:00:00.000Z"}`},
		[]string{`{"endDate":"2024-07-01T03:00:00.000Z"}`},
	)

	fetcher := pagination.NewFetcher(newClient(t, redisClient), pagination.DefaultConfig())
	ctx := context.Background()

	first, err := fetcher.FetchAll(ctx, historySpec(mock.Endpoint(historyPath)))
	if err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	if len(first.Items) != 3 || first.Pages != 2 {
		t.Fatalf("First fetch = %d items / %d pages, want 3 / 2", len(first.Items), first.Pages)
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("API requests = %d, want 2", got)
	}

	keys, err := redisClient.Keys(ctx, "exorde:*").Result()
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	pages := 0
	for _, k := range keys {
		if k != ratelimit.RedisKeyRemaining && k != ratelimit.RedisKeyResetTimestamp && k != ratelimit.RedisKeyLastUpdate {
			pages++
		}
	}
	if pages != 2 {
		t.Errorf("Cached pages = %d, want 2 (keys: %v)", pages, keys)
	}

	// Second fetch - every page comes from Redis
	second, err := fetcher.FetchAll(ctx, historySpec(mock.Endpoint(historyPath)))
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("API requests after cached fetch = %d, want 2", got)
	}
	for i := range first.Items {
		if string(first.Items[i]) != string(second.Items[i]) {
			t.Errorf("Item %d = %s, want %s", i, second.Items[i], first.Items[i])
		}
	}
}

// TestCacheHit tests that a cached page is served with X-Cache: HIT.
func TestCacheHit(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(historyPath, testutil.NewHealthyResponse(`{"items": [{"volume": 1}]}`))

	c := newClient(t, redisClient)
	ctx := context.Background()
	params := url.Values{"interval": []string{"60"}}

	resp1, err := c.Get(ctx, mock.Endpoint(historyPath), params)
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	resp1.Body.Close()

	resp2, err := c.Get(ctx, mock.Endpoint(historyPath), params)
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}
	body, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if got := resp2.Header.Get("X-Cache"); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", got)
	}
	if string(body) != `{"items": [{"volume": 1}]}` {
		t.Errorf("Cached body = %s", body)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("API requests = %d, want 1", got)
	}
}

// TestErrorsNotCached tests that failed pages always reach the API.
func TestErrorsNotCached(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(historyPath, testutil.NewServerErrorResponse())

	fetcher := pagination.NewFetcher(newClient(t, redisClient), pagination.DefaultConfig())

	for i := 0; i < 2; i++ {
		_, err := fetcher.FetchAll(context.Background(), historySpec(mock.Endpoint(historyPath)))
		apiErr, ok := client.IsAPIError(err)
		if !ok {
			t.Fatalf("Fetch %d error = %v, want *client.APIError", i+1, err)
		}
		if apiErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
		}
	}

	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("API requests = %d, want 2", got)
	}
}

// TestQuotaSharedAcrossClients tests that an exhausted quota reported to one
// client blocks another client on the same Redis.
func TestQuotaSharedAcrossClients(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(historyPath, testutil.MockAPIResponse{
		StatusCode: http.StatusOK,
		Body:       `{"items": []}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "60",
		},
	})

	ctx := context.Background()

	first := newClient(t, redisClient)
	resp, err := first.Get(ctx, mock.Endpoint(historyPath), url.Values{"limit": []string{"1"}})
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	resp.Body.Close()

	second := newClient(t, redisClient)
	_, err = second.Get(ctx, mock.Endpoint(historyPath), url.Values{"limit": []string{"2"}})
	if !errors.Is(err, client.ErrRateLimited) {
		t.Errorf("Second client error = %v, want ErrRateLimited", err)
	}

	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("API requests = %d, want 1", got)
	}
}

// TestCacheExpiration tests that expired cache entries are not used.
func TestCacheExpiration(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetHandler(historyPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Expires", time.Now().Add(2*time.Second).Format(http.TimeFormat))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"items": []}`))
	})

	c := newClient(t, redisClient)
	ctx := context.Background()
	endpoint := mock.Endpoint(historyPath)

	resp1, err := c.Get(ctx, endpoint, nil)
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	resp1.Body.Close()

	u, _ := url.Parse(endpoint)
	if _, err := c.GetCache().Get(ctx, cache.KeyForURL(u)); err != nil {
		t.Fatalf("Cache lookup failed: %v", err)
	}

	// Wait for expiration
	time.Sleep(3 * time.Second)

	if _, err := c.GetCache().Get(ctx, cache.KeyForURL(u)); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("Expected cache miss after expiration, got: %v", err)
	}

	resp3, err := c.Get(ctx, endpoint, nil)
	if err != nil {
		t.Fatalf("Third request failed: %v", err)
	}
	resp3.Body.Close()

	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("API requests = %d, want 2 (cache expired)", got)
	}
}
