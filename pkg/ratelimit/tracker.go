package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exorde_ratelimit_remaining",
		Help: "Requests remaining in the current API quota window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exorde_ratelimit_blocks_total",
		Help: "Total number of requests blocked because the API quota was exhausted",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exorde_ratelimit_throttles_total",
		Help: "Total number of requests throttled because the API quota was low",
	})
)

// Header names read from API responses.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// epochThreshold separates "seconds until reset" from "unix timestamp" reset values.
const epochThreshold = 1_000_000_000

// Config holds tracker configuration.
type Config struct {
	// RequestsPerSecond paces outgoing requests; <= 0 disables pacing.
	RequestsPerSecond float64

	// Burst is the token bucket size; defaults to 1.
	Burst int

	// ThrottleDelay is the pause applied when the quota is low.
	ThrottleDelay time.Duration

	// Redis shares quota state between processes; nil keeps it in memory.
	Redis *redis.Client
}

// Tracker paces requests and gates them on the API quota.
type Tracker struct {
	redis    *redis.Client
	limiter  *rate.Limiter
	throttle time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	local *QuotaState
}

// NewTracker creates a new quota tracker.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	throttle := cfg.ThrottleDelay
	if throttle <= 0 {
		throttle = 1 * time.Second
	}

	return &Tracker{
		redis:    cfg.Redis,
		limiter:  limiter,
		throttle: throttle,
		logger:   logger,
	}
}

// GetState returns the current quota state.
// Returns a default healthy state if nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.local == nil {
			return defaultState(), nil
		}
		state := *t.local
		return &state, nil
	}

	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if errors.Is(err, redis.Nil) {
		t.logger.Debug().Msg("No quota state in Redis, returning default healthy state")
		return defaultState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	resetTimestamp, err := t.redis.Get(ctx, RedisKeyResetTimestamp).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &QuotaState{
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: lastUpdate,
	}
	state.UpdateHealth()

	return state, nil
}

// UpdateFromHeaders records the quota reported by a response.
// Responses without quota headers leave the state untouched.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}

	resetValue, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	now := time.Now()
	state := &QuotaState{
		Remaining:  remain,
		ResetAt:    resetTime(now, resetValue),
		LastUpdate: now,
	}
	state.UpdateHealth()

	if err := t.store(ctx, state); err != nil {
		return err
	}

	quotaRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("API quota exhausted - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("API quota low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy).
			Msg("API quota state updated")
	}

	return nil
}

func (t *Tracker) store(ctx context.Context, state *QuotaState) error {
	if t.redis == nil {
		t.mu.Lock()
		t.local = state
		t.mu.Unlock()
		return nil
	}

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, 0)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), 0)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}
	return nil
}

// ShouldAllowRequest waits for a pacing token, then checks the quota.
// Returns false if the quota is exhausted until the window resets.
// Sleeps for the throttle delay when the quota is low.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return false, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("API quota exhausted - blocking request")
		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", t.throttle).
			Msg("API quota low - throttling request")
		rateLimitThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.throttle):
		}
	}

	return true, nil
}

// resetTime interprets a reset header value as either seconds until reset or a
// unix timestamp.
func resetTime(now time.Time, value int64) time.Time {
	if value >= epochThreshold {
		return time.Unix(value, 0)
	}
	return now.Add(time.Duration(value) * time.Second)
}
