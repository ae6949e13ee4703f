// Package fetch retrieves pages over plain HTTP, without a browser. It is
// the cheap first tier of the pipeline; rendering only happens when the
// fetched document looks client-side rendered.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client fetches pages with retry and browser-like request headers.
type Client struct {
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
	logger     *slog.Logger
}

// Error reports a fetch that failed after all attempts were exhausted.
type Error struct {
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError reports a non-2xx response. 4xx statuses are terminal and
// are not retried; the page simply does not serve plain HTTP clients.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// New creates a fetch client. Each attempt gets its own timeout; retries
// are delayed by initialBackoff, doubling per attempt.
func New(timeout time.Duration, attempts int, initialBackoff time.Duration, logger *slog.Logger) *Client {
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		attempts:   attempts,
		backoff:    initialBackoff,
		logger:     logger,
	}
}

// Fetch retrieves the page at url, retrying transient failures. A 4xx
// response aborts immediately. On success the response body is returned
// as a string.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.backoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = 30 * time.Second

	var html string
	attempt := 0

	operation := func() error {
		attempt++
		body, err := c.fetchOnce(ctx, url)
		if err != nil {
			c.logger.Debug("fetch attempt failed",
				"url", url, "attempt", attempt, "error", err)
			return err
		}
		html = body
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.attempts-1)), ctx))
	if err != nil {
		return "", &Error{URL: url, Attempts: attempt, Err: err}
	}

	c.logger.Debug("fetch succeeded", "url", url, "attempt", attempt, "bytes", len(html))
	return html, nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	setBrowserHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", backoff.Permanent(&StatusError{StatusCode: resp.StatusCode})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// setBrowserHeaders makes the request look like a desktop Chrome
// navigation. Several retailers serve reduced or blocked pages to
// default Go user agents.
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept",
		"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}
