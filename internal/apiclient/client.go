// Package apiclient talks to the attendance REST API. Every call attaches the
// current bearer token and normalizes failures into ConnectionError or
// RequestError. Nothing is retried.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Client calls the attendance API under BaseURL + "/api".
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger
	Metrics *Metrics

	mu    sync.RWMutex
	token string
}

// New creates a client with a request timeout.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

// SetToken sets the bearer token sent with every request. "" sends none.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Do sends a JSON request to path (relative to /api) and decodes a successful
// response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+"/api"+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	route := routeLabel(method, path)
	started := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Metrics.observe(route, "connection_error", time.Since(started))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Logger.Warn("api unreachable", "route", route, "error", err)
		return &ConnectionError{BaseURL: c.BaseURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.Metrics.observe(route, "connection_error", time.Since(started))
		return &ConnectionError{BaseURL: c.BaseURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.Metrics.observe(route, "request_error", time.Since(started))
		var payload struct {
			Error string `json:"error"`
		}
		// An unparseable body is treated as an empty object.
		_ = json.Unmarshal(data, &payload)
		message := payload.Error
		if message == "" {
			message = fallbackMessage
		}
		c.Logger.Warn("api request failed", "route", route, "status", resp.StatusCode, "error", message)
		return &RequestError{Status: resp.StatusCode, Message: message}
	}

	c.Metrics.observe(route, "ok", time.Since(started))
	c.Logger.Debug("api request", "route", route, "status", resp.StatusCode, "elapsed", time.Since(started))

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", route, err)
	}
	return nil
}

var numericSegment = regexp.MustCompile(`/\d+`)

// routeLabel turns "/classes/7/roster?date=..." into "GET /classes/:id/roster".
func routeLabel(method, path string) string {
	path, _, _ = strings.Cut(path, "?")
	return method + " " + numericSegment.ReplaceAllString(path, "/:id")
}
