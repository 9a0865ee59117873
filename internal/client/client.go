// Package client is the consumer side of the dashboard API: request
// helpers for launching and cancelling jobs, and a stream reconciler that
// mirrors a job's server-side state from its event stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/params"
	"github.com/4liaghaie/scraper-dashboard/internal/retry"
)

// KindInfo is one entry of the kind catalog as served by the API.
type KindInfo struct {
	Name   string            `json:"name"`
	Title  string            `json:"title,omitempty"`
	Params []json.RawMessage `json:"params,omitempty"`
}

// apiError is the wire shape of a non-2xx API response.
type apiError struct {
	Error  string              `json:"error"`
	Fields []params.FieldError `json:"fields,omitempty"`
}

// Client talks to a dashboard server.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      logger.Logger
	resubscribe *retry.Config
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithResubscribe makes Subscribe reattach a dropped stream with the given
// backoff schedule instead of surfacing the transport error.
func WithResubscribe(cfg retry.Config) Option {
	return func(c *Client) { c.resubscribe = &cfg }
}

// New creates a client for the dashboard at baseURL.
func New(baseURL string, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Streams are long-lived, so no client-wide timeout.
		httpClient: &http.Client{},
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches a job of the given kind and returns its queued snapshot.
func (c *Client) Start(ctx context.Context, kind string, values params.Values) (jobs.Snapshot, error) {
	body, err := json.Marshal(struct {
		Kind   string        `json:"kind"`
		Params params.Values `json:"params,omitempty"`
	}{Kind: kind, Params: values})
	if err != nil {
		return jobs.Snapshot{}, fmt.Errorf("encode start request: %w", err)
	}

	var snap jobs.Snapshot
	if err := c.do(ctx, http.MethodPost, "/jobs/start", body, &snap); err != nil {
		return jobs.Snapshot{}, err
	}
	return snap, nil
}

// Status fetches the current snapshot of a job.
func (c *Client) Status(ctx context.Context, jobID string) (jobs.Snapshot, error) {
	var snap jobs.Snapshot
	if err := c.do(ctx, http.MethodGet, "/jobs/status/"+jobID, nil, &snap); err != nil {
		return jobs.Snapshot{}, err
	}
	return snap, nil
}

// Cancel requests cancellation of a job.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/jobs/cancel/"+jobID, nil, nil)
}

// CancelAll requests cancellation of every active job, or only those of
// one kind, and returns how many were signalled.
func (c *Client) CancelAll(ctx context.Context, kind string) (int, error) {
	path := "/jobs/cancel-all"
	if kind != "" {
		path += "?kind=" + url.QueryEscape(kind)
	}
	var out struct {
		Cancelled int `json:"cancelled"`
	}
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Cancelled, nil
}

// Kinds fetches the launchable kind catalog.
func (c *Client) Kinds(ctx context.Context) ([]KindInfo, error) {
	var out []KindInfo
	if err := c.do(ctx, http.MethodGet, "/jobs/kinds", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
		if len(apiErr.Fields) > 0 {
			return &params.ValidationError{Fields: apiErr.Fields}
		}
		return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}

// streamClient returns the HTTP client used for stream requests. A stream
// is long-lived, so it must not inherit a short client-wide timeout.
func (c *Client) streamClient() *http.Client {
	if c.httpClient.Timeout == 0 {
		return c.httpClient
	}
	clone := *c.httpClient
	clone.Timeout = 0
	return &clone
}
