// Package client is the HTTP client sentryctl (and any embedding program)
// uses to talk to a running sentryd daemon's Control API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to one daemon's Control API. The token travels in every
// request's JSON body -- even on GET requests -- matching the Control
// API's wire protocol; it is never sent as an Authorization header.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New returns a Client pointed at baseURL (e.g. "http://127.0.0.1:3401"),
// authenticating with token.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// apiError mirrors the Control API's {"error": "..."} JSON error body.
type apiError struct {
	Error string `json:"error"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, body map[string]any, out any) error {
	if body == nil {
		body = map[string]any{}
	}
	body["token"] = c.Token

	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("client: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return handleErrorResponse(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func handleErrorResponse(status int, data []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", status, apiErr.Error)
	}
	return fmt.Errorf("daemon returned %d", status)
}

// PingResult is the daemon's reply to /ping: its version and what kind of
// access the presented token grants.
type PingResult struct {
	Version string `json:"version"`
	Token   string `json:"token"`
}

// Ping checks that the daemon is reachable and the token is valid for at
// least one app, returning what kind of access it classified as.
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	var out PingResult
	if err := c.doJSON(ctx, http.MethodGet, "/ping", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AppStatus is one app's entry in a Status response.
type AppStatus struct {
	Name   string          `json:"name"`
	Status json.RawMessage `json:"status"`
}

// Status is the daemon-wide health payload returned by /status.
type Status struct {
	Uptime  int64          `json:"uptime"`
	Version string         `json:"version"`
	System  map[string]any `json:"system"`
	Apps    []AppStatus    `json:"apps"`
	Health  string         `json:"health"`
	Logs    []LogEntry     `json:"logs"`
}

// Status fetches daemon-wide status; requires the global token.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.doJSON(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AppInfo is the per-app detail returned by /app/info.
type AppInfo struct {
	Name   string          `json:"name"`
	Status json.RawMessage `json:"status"`
	Output struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	} `json:"output"`
	Info *struct {
		PID     int32  `json:"pid"`
		Memory  uint64 `json:"memory"`
		Threads int32  `json:"threads"`
		Uptime  int64  `json:"uptime"`
	} `json:"info,omitempty"`
}

// AppInfo fetches one app's detail; requires a token scoped to name (or
// the global token).
func (c *Client) AppInfo(ctx context.Context, name string) (*AppInfo, error) {
	var out AppInfo
	body := map[string]any{"name": name}
	if err := c.doJSON(ctx, http.MethodGet, "/app/info", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActionOptions carries the optional fields an /app/action request may
// need depending on which action is requested: Signal for Stop, and the
// remaining fields for Update.
type ActionOptions struct {
	Signal   string
	Branch   string
	Checkout string
	Remote   string
	Force    bool
	Data     string
}

// Action submits a Start/Stop/Update/Reload action for name.
func (c *Client) Action(ctx context.Context, name, action string, opts ActionOptions) error {
	body := map[string]any{
		"name":     name,
		"action":   action,
		"signal":   opts.Signal,
		"branch":   opts.Branch,
		"checkout": opts.Checkout,
		"remote":   opts.Remote,
		"force":    opts.Force,
		"data":     opts.Data,
	}
	return c.doJSON(ctx, http.MethodPost, "/app/action", body, nil)
}

// LogEntry mirrors internal/logstore.Entry for client-side consumption.
type LogEntry struct {
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// Logs pages through the daemon-wide Log Store, newest-first unless rev
// is set. endTime, when positive, clamps the view to entries at or before
// that unix timestamp.
func (c *Client) Logs(ctx context.Context, page, lines int, endTime int64, rev bool) ([]LogEntry, bool, error) {
	var out struct {
		Logs []LogEntry `json:"logs"`
		End  bool       `json:"end"`
	}
	body := map[string]any{"page": page, "lines": lines, "end_time": endTime, "rev": rev}
	if err := c.doJSON(ctx, http.MethodPost, "/logs", body, &out); err != nil {
		return nil, false, err
	}
	return out.Logs, out.End, nil
}
