// Package client talks to a running laboveda worker over HTTP.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/laboveda/pkg/models"
)

const (
	// HealthCheckTimeout bounds a single health probe.
	HealthCheckTimeout = 1 * time.Second

	// DefaultTimeout is used for ordinary API calls. Recalibration has no client timeout.
	DefaultTimeout = 30 * time.Second
)

// APIError is a non-2xx response from the worker.
type APIError struct {
	Message            string `json:"error"`
	Field              string `json:"field,omitempty"`
	RequestID          string `json:"request_id,omitempty"`
	NeedsRecalibration bool   `json:"needs_recalibration,omitempty"`
	Status             int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("worker returned %d: %s", e.Status, e.Message)
}

// Health is the body of GET /health.
type Health struct {
	Database      map[string]any `json:"database,omitempty"`
	Recalibration map[string]any `json:"recalibration,omitempty"`
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	Uptime        string         `json:"uptime"`
}

// Client is a worker API client.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// New creates a client for the worker on 127.0.0.1:port.
func New(port int, token string) *Client {
	return NewWithURL(fmt.Sprintf("http://127.0.0.1:%d", port), token)
}

// NewWithURL creates a client for the worker at baseURL.
func NewWithURL(baseURL, token string) *Client {
	return &Client{
		http:    &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// IsRunning reports whether the worker answers its health check.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()
	_, err := c.Health(ctx)
	return err == nil
}

// Health fetches the worker health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Recalibrate asks the worker to run a full recalibration and waits for the report.
func (c *Client) Recalibrate(ctx context.Context, concurrency int) (*models.RecalibrationReport, error) {
	var report models.RecalibrationReport
	body := map[string]int{"concurrency": concurrency}
	if err := c.do(ctx, http.MethodPost, "/api/recalibrate", body, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// KPIs fetches the catalog totals.
func (c *Client) KPIs(ctx context.Context) (*models.GlobalKPIs, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var kpis models.GlobalKPIs
	if err := c.do(ctx, http.MethodGet, "/api/kpis", nil, &kpis); err != nil {
		return nil, err
	}
	return &kpis, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
