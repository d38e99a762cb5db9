package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrRateLimited is returned when the rate gate refuses a request because the
	// shared API quota is exhausted.
	ErrRateLimited = errors.New("request blocked: api quota exhausted")
)

// APIError is a non-200 answer from the analytics API.
// It carries the status code and the raw body text so the failure can be diagnosed.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	URL        string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("api %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, http.StatusText(e.StatusCode))
}

// NewAPIError builds an APIError for the given status and body text.
func NewAPIError(statusCode int, url, body string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorClass: ClassifyStatus(statusCode),
		URL:        url,
		Body:       body,
	}
}

// IsAPIError reports whether err wraps an *APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// ClassifyStatus maps an HTTP status code to an error class.
// Success and redirect codes classify as "".
func ClassifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
