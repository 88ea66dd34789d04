package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 16 << 20

// HTTPClient is the rate-limited HTTP plumbing shared by the adapters.
// Each request runs under its own timeout; exceeding it surfaces as a
// network error like any other transport failure.
type HTTPClient struct {
	Name    string
	HTTP    *http.Client
	Limiter *rate.Limiter
	Header  http.Header
	Timeout time.Duration
}

// NewHTTPClient creates a client allowing rps requests per second.
func NewHTTPClient(name string, rps float64, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		Name:    name,
		HTTP:    &http.Client{},
		Limiter: rate.NewLimiter(rate.Limit(rps), 1),
		Header:  make(http.Header),
		Timeout: timeout,
	}
}

// Get performs a GET request and returns the response body.
func (c *HTTPClient) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNetworkError, c.Name, err)
	}
	defer resp.Body.Close()

	if err := CheckStatus(c.Name, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading body: %v", ErrNetworkError, c.Name, err)
	}
	return body, nil
}

// GetJSON performs a GET request and decodes the JSON response into out.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, c.Name, err)
	}
	return nil
}

// CheckStatus returns an error if the HTTP response indicates a problem.
func CheckStatus(name string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s: status %d", ErrNotFound, name, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: status %d", ErrRateLimited, name, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s: status %d", ErrAuthError, name, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &APIError{
			Source:     name,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}
	return nil
}
