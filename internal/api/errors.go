package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// APIError represents an error response from the backend.
type APIError struct {
	StatusCode int
	Body       string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// RateLimitError represents a rate limit exceeded error.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// AuthError represents an authentication or authorization error.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication error: %s", e.Reason)
}

// IsRateLimitError checks if the error is a rate limit error.
func IsRateLimitError(err error) bool {
	var e *RateLimitError
	return errors.As(err, &e)
}

// IsAuthError checks if the error indicates a rejected or missing token.
func IsAuthError(err error) bool {
	var e *AuthError
	if errors.As(err, &e) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}

// IsNotFoundError checks if the error indicates a resource was not found.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404 ||
			strings.Contains(strings.ToLower(apiErr.Body), "not found")
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// sanitizeErrorBody extracts a safe error message from a backend response
// without exposing potentially sensitive data like tokens or user info.
func sanitizeErrorBody(body string) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &errResp); err != nil {
		return "API request failed (response body redacted)"
	}
	if errResp.Error != "" {
		return errResp.Error
	}
	if errResp.Message != "" {
		return errResp.Message
	}
	return "API request failed (response body redacted)"
}
