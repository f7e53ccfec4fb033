// Package fetch loads the watched page over HTTP and reduces it to the
// visible text a browser would show.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// maxBodySize bounds how much of the page is read. The vacancy
	// page sits well inside it.
	maxBodySize = 2 << 20

	defaultUserAgent = "Mozilla/5.0 (compatible; kaikatsubot/1.0)"
)

// Sentinel errors for classifying failed fetches.
var (
	// ErrTimeout marks a fetch that exceeded its deadline.
	ErrTimeout = errors.New("page fetch timed out")
	// ErrStatus marks a non-2xx response.
	ErrStatus = errors.New("unexpected response status")
)

// Config holds fetcher configuration.
type Config struct {
	URL       string
	UserAgent string
}

// Client fetches one page and extracts its visible text.
type Client struct {
	url        string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a page fetcher for url. The HTTP client timeout is
// only a backstop; callers bound each fetch through their context.
func NewClient(cfg Config) *Client {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		url:       cfg.URL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// URL returns the watched page address.
func (c *Client) URL() string {
	return c.url
}

// Fetch retrieves the page and returns its visible text, never raw
// HTML. Timeouts are reported as ErrTimeout, non-2xx responses as
// ErrStatus.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "ja")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	text, err := Text(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	return text, nil
}
