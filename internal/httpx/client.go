// Package httpx is a thin JSON HTTP client shared by the outbound API
// clients. It normalizes non-2xx responses into a typed error carrying the
// status and parsed body.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Config holds client construction options.
type Config struct {
	BaseURL        string
	DefaultHeaders map[string]string
	Timeout        time.Duration
}

// Client issues JSON requests against a fixed base URL.
type Client struct {
	cfg Config
	hc  *http.Client
}

// NewClient creates a Client. A zero Timeout defaults to 10s per request.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Error is returned for any non-2xx response.
type Error struct {
	Status  int
	Body    []byte
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// GetJSON issues a GET and decodes a JSON response into out (may be nil).
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// PostJSON issues a POST with a JSON body and decodes the response into out
// (either may be nil).
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	url := c.cfg.BaseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpx: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("httpx: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.DefaultHeaders {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpx: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Status:  resp.StatusCode,
			Body:    data,
			Message: extractMessage(resp, data),
		}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("httpx: decode response: %w", err)
	}
	return nil
}

// extractMessage pulls a human-readable message out of an error response
// body, falling back to the HTTP status text.
func extractMessage(resp *http.Response, body []byte) string {
	if len(body) > 0 {
		if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
			var obj struct {
				Error   json.RawMessage `json:"error"`
				Message string          `json:"message"`
				Detail  string          `json:"detail"`
				Details string          `json:"details"`
			}
			if json.Unmarshal(body, &obj) == nil {
				if len(obj.Error) > 0 {
					// "error" may be a string or an object with a message.
					var s string
					if json.Unmarshal(obj.Error, &s) == nil && s != "" {
						return s
					}
					var nested struct {
						Message string `json:"message"`
					}
					if json.Unmarshal(obj.Error, &nested) == nil && nested.Message != "" {
						return nested.Message
					}
				}
				for _, s := range []string{obj.Message, obj.Detail, obj.Details} {
					if s != "" {
						return s
					}
				}
			}
		}
		return truncateBody(string(body))
	}
	if resp.Status != "" {
		return resp.Status
	}
	return "unknown error"
}

func truncateBody(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// IsTimeout reports whether err represents a timed-out or aborted request.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// net/http wraps client timeouts in a *url.Error whose message carries
	// the deadline text.
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}
