package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shoplane/schat/internal/debug"
)

const DefaultTimeout = 30 * time.Second

// Client is the Shoplane storefront API client, scoped to the
// customer-facing support endpoints.
type Client struct {
	BaseURL     string
	Token       string
	HTTP        *http.Client
	UserAgent   string
	RetryConfig RetryConfig
}

// New creates a new API client authenticated with a bearer token.
func New(baseURL, token string) *Client {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		baseTransport = &http.Transport{}
	}
	transport := baseTransport.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12

	return &Client{
		BaseURL:     baseURL,
		Token:       token,
		RetryConfig: DefaultRetryConfig(),
		HTTP: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: transport,
		},
	}
}

// apiPath returns the absolute URL for a storefront API path.
func (c *Client) apiPath(path string) string {
	if path != "" && path[0] != '/' {
		path = "/" + path
	}
	return c.BaseURL + "/api" + path
}

// do performs an HTTP request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, url string, body any, result any) error {
	respBody, _, err := c.executeRequest(ctx, method, url, body)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unexpected API response format (JSON decode failed): %w", err)
		}
	}
	return nil
}

// executeRequest performs an HTTP request with retry logic for 429 and
// transient 5xx responses. The marshalled body is reused across attempts.
func (c *Client) executeRequest(ctx context.Context, method, url string, body any) ([]byte, int, error) {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	isIdempotent := method == http.MethodGet || method == http.MethodHead

	var retries429, retries5xx int
	attempt := 0

	for {
		attempt++
		start := time.Now()
		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", err)
		}

		if c.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.Token)
		}
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}
		if jsonBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			if debug.IsEnabled(ctx) {
				slog.Debug("request failed", "method", method, "url", url, "attempt", attempt, "error", err)
			}
			return nil, 0, fmt.Errorf("request failed: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read response: %w", err)
		}
		if debug.IsEnabled(ctx) {
			slog.Debug("request complete", "method", method, "url", url, "status", resp.StatusCode, "attempt", attempt, "duration", time.Since(start))
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter, hasRetryAfter := retryAfterDuration(resp.Header)
			baseDelay := c.RetryConfig.RateLimitBaseDelay
			if !isIdempotent || retries429 >= c.RetryConfig.MaxRateLimitRetries {
				if hasRetryAfter {
					return nil, resp.StatusCode, &RateLimitError{RetryAfter: retryAfter}
				}
				return nil, resp.StatusCode, &RateLimitError{RetryAfter: baseDelay}
			}
			delay := retryAfter
			if !hasRetryAfter {
				delay = baseDelay * time.Duration(1<<retries429)
			}
			slog.Info("rate limited, retrying", "delay", delay, "attempt", retries429+1)
			if err := sleepWithContext(ctx, delay); err != nil {
				return nil, 0, err
			}
			retries429++
			continue
		}

		if resp.StatusCode >= 500 && isIdempotent && retries5xx < c.RetryConfig.Max5xxRetries {
			slog.Info("server error, retrying", "status", resp.StatusCode)
			if err := sleepWithContext(ctx, c.RetryConfig.ServerErrorRetryDelay); err != nil {
				return nil, 0, err
			}
			retries5xx++
			continue
		}

		if resp.StatusCode >= 400 {
			return respBody, resp.StatusCode, &APIError{
				StatusCode: resp.StatusCode,
				Body:       sanitizeErrorBody(string(respBody)),
				RequestID:  resp.Header.Get("X-Request-Id"),
			}
		}

		return respBody, resp.StatusCode, nil
	}
}

// Get performs a GET request against a storefront API path.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, c.apiPath(path), nil, result)
}

// Post performs a POST request against a storefront API path.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPost, c.apiPath(path), body, result)
}

// SocketURL converts the client base URL into the push channel endpoint.
func (c *Client) SocketURL() string {
	return SocketURL(c.BaseURL)
}
