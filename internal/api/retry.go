package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryConfig controls retry behavior for rate-limited and failed requests.
type RetryConfig struct {
	MaxRateLimitRetries   int
	Max5xxRetries         int
	RateLimitBaseDelay    time.Duration
	ServerErrorRetryDelay time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRateLimitRetries:   3,
		Max5xxRetries:         2,
		RateLimitBaseDelay:    1 * time.Second,
		ServerErrorRetryDelay: 1 * time.Second,
	}
}

// retryAfterDuration parses the Retry-After header, accepting both
// delay-seconds and HTTP-date forms.
func retryAfterDuration(h http.Header) (time.Duration, bool) {
	value := strings.TrimSpace(h.Get("Retry-After"))
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(value); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// sleepWithContext sleeps for d or until ctx is done, whichever comes first.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
