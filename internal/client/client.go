// Package client is an HTTP client for the shin API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/shin/internal/api"
)

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api error %d (request %s): %s", e.StatusCode, e.RequestID, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client calls a remote shin API
type Client struct {
	baseURL *url.URL
	http    *RateLimitedHTTPClient
}

// New creates a client for the API at baseURL
func New(baseURL string, cfg HTTPClientConfig, log *logrus.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	return &Client{
		baseURL: u,
		http:    NewRateLimitedHTTPClient(cfg, log),
	}, nil
}

// ImpliedProbabilities requests implied probabilities for quoted odds
func (c *Client) ImpliedProbabilities(ctx context.Context, req api.ImpliedProbabilitiesRequest) (*api.ImpliedProbabilitiesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/v1/implied-probabilities"), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out api.ImpliedProbabilitiesResponse
	if err := c.do(ctx, httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health calls the health endpoint
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/health"), nil)
	if err != nil {
		return nil, err
	}

	var out api.HealthResponse
	if err := c.do(ctx, httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

func (c *Client) do(ctx context.Context, req *retryablehttp.Request, out interface{}) error {
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body api.ErrorResponse
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			apiErr.RequestID = body.RequestID
			apiErr.Message = body.Error
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
