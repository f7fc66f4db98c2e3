// Package airtable provides a minimal HTTP client for the Airtable REST API,
// covering the list-records operation this service depends on.
package airtable

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the Airtable REST API endpoint
	DefaultBaseURL = "https://api.airtable.com/v0"

	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize is the maximum allowed response size (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "kyc-status-server/1.0"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// ListOptions are the query parameters for a list-records call
type ListOptions struct {
	// MaxRecords caps the number of rows Airtable returns
	MaxRecords int

	// View is the Airtable view to query
	View string

	// FilterByFormula is an Airtable formula restricting the result set.
	// Callers must escape any interpolated user input (see formula.go).
	FilterByFormula string
}

// Client is an interface for Airtable list-records operations
type Client interface {
	// ListRecords fetches the raw response body for a filtered record listing
	ListRecords(ctx context.Context, opts ListOptions) ([]byte, error)
}

// DefaultClient is the default Airtable client implementation
type DefaultClient struct {
	client  *http.Client
	baseURL string
	baseID  string
	tableID string
	apiKey  string
}

// ClientOption configures the default client
type ClientOption func(*DefaultClient)

// WithBaseURL overrides the Airtable API endpoint, mainly for tests
func WithBaseURL(baseURL string) ClientOption {
	return func(c *DefaultClient) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-request timeout. If zero, DefaultTimeout is used.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *DefaultClient) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// NewDefaultClient creates a new Airtable client for a single base and table.
// The API key is injected here at construction and never read from globals.
func NewDefaultClient(baseID, tableID, apiKey string, opts ...ClientOption) *DefaultClient {
	c := &DefaultClient{
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		baseURL: DefaultBaseURL,
		baseID:  baseID,
		tableID: tableID,
		apiKey:  apiKey,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ListRecords performs a GET against the list-records endpoint and returns
// the raw response body. Exactly one request is made per call; there is no
// retry.
func (c *DefaultClient) ListRecords(ctx context.Context, opts ListOptions) ([]byte, error) {
	reqURL := c.buildURL(opts)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(resp.StatusCode, reqURL, resp.Status)
	}

	// Read response body with size limit
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}

	return body, nil
}

// buildURL assembles the list-records URL with query parameters
func (c *DefaultClient) buildURL(opts ListOptions) string {
	q := url.Values{}
	if opts.MaxRecords > 0 {
		q.Set("maxRecords", strconv.Itoa(opts.MaxRecords))
	}
	if opts.View != "" {
		q.Set("view", opts.View)
	}
	if opts.FilterByFormula != "" {
		q.Set("filterByFormula", opts.FilterByFormula)
	}

	u := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(c.tableID))
	if encoded := q.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}
