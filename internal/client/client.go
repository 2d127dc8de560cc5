// Package client is a typed HTTP client for the task API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aatumaykin/skybit/internal/schedule"
	"github.com/aatumaykin/skybit/internal/tasks"
	"github.com/aatumaykin/skybit/internal/version"
)

// DefaultTimeout bounds each request when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Detail)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to a running skybit server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunResponse acknowledges a background run.
type RunResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// List returns every task.
func (c *Client) List(ctx context.Context) ([]tasks.Task, error) {
	var out struct {
		Tasks []tasks.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Get returns one task.
func (c *Client) Get(ctx context.Context, id string) (tasks.Task, error) {
	var t tasks.Task
	err := c.do(ctx, http.MethodGet, taskPath(id), nil, &t)
	return t, err
}

// Create creates a task.
func (c *Client) Create(ctx context.Context, req tasks.CreateRequest) (tasks.Task, error) {
	var t tasks.Task
	err := c.do(ctx, http.MethodPost, "/api/tasks", req, &t)
	return t, err
}

// Update applies a partial update.
func (c *Client) Update(ctx context.Context, id string, req tasks.UpdateRequest) (tasks.Task, error) {
	var t tasks.Task
	err := c.do(ctx, http.MethodPut, taskPath(id), req, &t)
	return t, err
}

// Delete removes a task.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

// Run starts a task in the background.
func (c *Client) Run(ctx context.Context, id string) (RunResponse, error) {
	var out RunResponse
	err := c.do(ctx, http.MethodPost, taskPath(id)+"/run", nil, &out)
	return out, err
}

// Enable turns a task's schedule on.
func (c *Client) Enable(ctx context.Context, id string) (tasks.Task, error) {
	var t tasks.Task
	err := c.do(ctx, http.MethodPost, taskPath(id)+"/enable", nil, &t)
	return t, err
}

// Disable turns a task's schedule off.
func (c *Client) Disable(ctx context.Context, id string) (tasks.Task, error) {
	var t tasks.Task
	err := c.do(ctx, http.MethodPost, taskPath(id)+"/disable", nil, &t)
	return t, err
}

// Steps returns the steps of the latest run.
func (c *Client) Steps(ctx context.Context, id string) ([]tasks.Step, error) {
	var steps []tasks.Step
	err := c.do(ctx, http.MethodGet, taskPath(id)+"/steps", nil, &steps)
	return steps, err
}

// ToggleResult pairs the server's task with the local advisory estimate
// computed before the request was sent.
type ToggleResult struct {
	Estimate schedule.Schedule
	Task     tasks.Task
}

// View returns the server's task, filling a missing next run from the
// estimate. The server value always wins when present.
func (r ToggleResult) View() tasks.Task {
	t := r.Task
	if t.NextRun != nil || !t.Active() {
		return t
	}
	if next, ok := r.Estimate.NextRunEstimate(); ok {
		t.NextRun = &next
	}
	return t
}

// Toggle flips the task's enabled flag. The direction and the advisory
// estimate come from the local toggle; the task is the server's.
func (c *Client) Toggle(ctx context.Context, t tasks.Task, now time.Time) (ToggleResult, error) {
	res := ToggleResult{Estimate: schedule.Toggle(t.Schedule, now)}
	var err error
	if res.Estimate.Enabled() {
		res.Task, err = c.Enable(ctx, t.ID)
	} else {
		res.Task, err = c.Disable(ctx, t.ID)
	}
	return res, err
}

func taskPath(id string) string {
	return "/api/tasks/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Detail = payload.Detail
		}
		if apiErr.Detail == "" {
			apiErr.Detail = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
