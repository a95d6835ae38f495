// Package fetch retrieves JSON record payloads from HTTP endpoints.
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tinytelemetry/bronze/internal/model"
)

// DefaultTimeout bounds a fetch when no timeout is given.
const DefaultTimeout = model.DefaultFetchTimeout

const maxErrorBody = 512

// Client issues single, non-retried GET requests for JSON record arrays.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying transport client.
// The Client timeout still applies through the request context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the effective per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Fetch performs one GET against url with a fresh client bounded by timeout.
func Fetch(ctx context.Context, url string, timeout time.Duration) ([]model.Record, error) {
	return New(WithTimeout(timeout)).Fetch(ctx, url)
}

// Fetch performs exactly one GET against url and decodes the body as a JSON
// array of objects. Transport failures and non-2xx statuses return *Error;
// a malformed body on a 2xx response returns *DecodeError.
func (c *Client) Fetch(ctx context.Context, url string) ([]model.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Cause: CauseRequest, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Cause: classify(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: url, Cause: classify(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := string(body)
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &Error{
			URL:        url,
			Cause:      CauseStatus,
			StatusCode: resp.StatusCode,
			Body:       excerpt,
			Err:        &statusError{code: resp.StatusCode},
		}
	}

	var records []model.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &DecodeError{URL: url, Err: err}
	}
	return records, nil
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}
