// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package zendesk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/deskrag/core"
)

const (
	defaultMaxAttempts    = 5
	defaultRetryBaseDelay = 1 * time.Second
	defaultPageDelay      = 1 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// Client performs authenticated requests against the Zendesk API.
// It is safe for concurrent use.
type Client struct {
	baseURL        string
	authHeader     string
	httpClient     *http.Client
	maxAttempts    int
	retryBaseDelay time.Duration
	pageDelay      time.Duration
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
// Default is an http.Client with a 30 s timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBaseURL overrides the API base URL derived from the subdomain.
// Intended for tests against httptest servers.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithRetry sets the retry budget and base backoff delay.
// Defaults are 5 attempts with a 1 s base delay, doubling per attempt.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			c.retryBaseDelay = baseDelay
		}
	}
}

// WithPageDelay sets the pause between paginated requests.
// Default is 1 s; values below zero are ignored.
func WithPageDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay >= 0 {
			c.pageDelay = delay
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Zendesk API client for the given subdomain using
// API-token authentication (email/token:token).
func NewClient(subdomain, email, token string, opts ...Option) (*Client, error) {
	if subdomain == "" || email == "" || token == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrConfig, ErrCredentialsRequired)
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(email + "/token:" + token))

	c := &Client{
		baseURL:        fmt.Sprintf("https://%s.zendesk.com/api/v2", subdomain),
		authHeader:     "Basic " + credentials,
		httpClient:     &http.Client{Timeout: defaultRequestTimeout},
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		pageDelay:      defaultPageDelay,
		logger:         slog.Default().With("component", "zendesk-client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// get performs a GET request. The path may be relative to the API base
// URL or an absolute URL (as returned in next_page links).
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) patch(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *Client) delete(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do executes a request with retries. Network errors and 5xx responses
// back off exponentially; 429 honors the server's Retry-After; 404 maps
// to core.ErrNotFound; other 4xx are fatal with the body attached.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	url := path
	if strings.HasPrefix(path, "/") {
		url = c.baseURL + path
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal request body: %w", core.ErrPermanent, err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: build request: %w", core.ErrPermanent, err)
		}
		req.Header.Set("Authorization", c.authHeader)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %s %s: %w", core.ErrTransient, method, url, err)
			c.logger.Debug("request failed, will retry",
				"method", method, "url", url, "attempt", attempt, "err", err)
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%w: read response: %w", core.ErrTransient, readErr)
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return respBody, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			delay := retryAfterDelay(resp.Header, c.retryDelay(attempt))
			lastErr = fmt.Errorf("%w: %w", core.ErrTransient,
				&APIError{StatusCode: resp.StatusCode, Method: method, URL: url, Body: truncateBody(respBody)})
			c.logger.Warn("rate limited, honoring retry hint",
				"url", url, "delay", delay, "attempt", attempt)
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}

		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s %s", core.ErrNotFound, method, url)

		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: %w", core.ErrTransient,
				&APIError{StatusCode: resp.StatusCode, Method: method, URL: url, Body: truncateBody(respBody)})
			c.logger.Debug("server error, will retry",
				"url", url, "status", resp.StatusCode, "attempt", attempt)
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("%w: %w", core.ErrPermanent,
				&APIError{StatusCode: resp.StatusCode, Method: method, URL: url, Body: truncateBody(respBody)})
		}
	}

	return nil, lastErr
}

// getJSON performs a GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	data, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", core.ErrPermanent, err)
	}
	return nil
}

// pagePause sleeps the polite inter-page delay between paginated requests.
func (c *Client) pagePause(ctx context.Context) error {
	return sleepContext(ctx, c.pageDelay)
}

// retryDelay computes the exponential backoff delay for an attempt.
func (c *Client) retryDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	if attempt >= c.maxAttempts {
		return nil
	}
	return sleepContext(ctx, c.retryDelay(attempt))
}

// retryAfterDelay parses a Retry-After header expressed in seconds,
// falling back to the provided delay when absent or malformed.
func retryAfterDelay(header http.Header, fallback time.Duration) time.Duration {
	raw := header.Get("Retry-After")
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seconds < 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// sleepContext sleeps for the given duration or until the context is done.
func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncateBody(body []byte) string {
	const maxLen = 512
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
