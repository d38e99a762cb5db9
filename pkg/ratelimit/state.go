// Package ratelimit paces requests to the analytics API and tracks the quota the
// API reports in its X-RateLimit-Remaining and X-RateLimit-Reset headers.
package ratelimit

import (
	"time"
)

// Redis keys for shared quota state.
const (
	RedisKeyRemaining      = "exorde:rate_limit:remaining"
	RedisKeyResetTimestamp = "exorde:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "exorde:rate_limit:last_update"
)

// Thresholds for quota decisions.
const (
	// RemainingThresholdCritical blocks requests while remaining quota is below
	// this value and the window has not reset yet.
	RemainingThresholdCritical = 1

	// RemainingThresholdWarning throttles requests below this value.
	RemainingThresholdWarning = 10

	// RemainingThresholdHealthy marks the state healthy at or above this value.
	RemainingThresholdHealthy = 50
)

// QuotaState is the API quota as last reported by the server.
// With a Redis backend it is shared by every client using the same key.
type QuotaState struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the quota window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last refreshed from response headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= RemainingThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// defaultState is assumed until the API reports real numbers.
func defaultState() *QuotaState {
	now := time.Now()
	return &QuotaState{
		Remaining:  100,
		ResetAt:    now.Add(60 * time.Second),
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// IsStale returns true if the state data is older than the given duration.
func (s *QuotaState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests must wait for the window to reset.
func (s *QuotaState) NeedsCriticalBlock() bool {
	return s.Remaining < RemainingThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *QuotaState) NeedsThrottling() bool {
	return s.Remaining < RemainingThresholdWarning && !s.NeedsCriticalBlock() && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the quota resets.
// Returns 0 if the reset time has already passed.
func (s *QuotaState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *QuotaState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= RemainingThresholdHealthy
}
