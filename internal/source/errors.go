package source

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by source adapters.
var (
	// ErrNotFound indicates the source has no such paper.
	ErrNotFound = errors.New("paper not found")

	// ErrRateLimited indicates the source rejected the request for rate reasons.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrAuthError indicates a missing or invalid API key.
	ErrAuthError = errors.New("authentication error")

	// ErrUnsupported indicates the source cannot serve this operation or ID format.
	ErrUnsupported = errors.New("operation not supported by source")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response")
)

// APIError represents an unexpected HTTP status from a source.
type APIError struct {
	Source     string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error indicates a paper was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsAuthError returns true if the error indicates an authentication problem.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthError) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsUnsupported returns true if the source cannot serve the request.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}
