package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guieduc/guieduc/internal/schema"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the remote root, e.g. "https://escola.example/".
	BaseURL string

	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration

	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client
}

// HTTPError is returned for non-2xx responses and for responses whose
// body reports ok=false.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Client talks to the remote event store.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("remote URL is not configured")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote URL %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote URL %q: scheme must be http or https", raw)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{base: base, http: hc}, nil
}

// BaseURL returns the remote root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Push sends events as one batch and returns how many the remote stored.
// Events the remote already had count as success but not as saved.
func (c *Client) Push(ctx context.Context, events []schema.Event) (int, error) {
	body, err := json.Marshal(schema.PushRequest{Events: events})
	if err != nil {
		return 0, fmt.Errorf("failed to encode push: %w", err)
	}

	var resp schema.PushResponse
	if err := c.do(ctx, http.MethodPost, schema.PushPath, body, &resp); err != nil {
		return 0, err
	}
	if !resp.OK {
		return 0, &HTTPError{Method: http.MethodPost, Path: schema.PushPath, StatusCode: http.StatusOK, Message: resp.Error}
	}
	return resp.Saved, nil
}

// Pull fetches the remote event history in ascending ts order.
func (c *Client) Pull(ctx context.Context) ([]schema.Event, error) {
	var resp schema.PullResponse
	if err := c.do(ctx, http.MethodGet, schema.PullPath, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, &HTTPError{Method: http.MethodGet, Path: schema.PullPath, StatusCode: http.StatusOK, Message: resp.Error}
	}
	return resp.Events, nil
}

// Ping checks that the remote is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, schema.HealthPath, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var env struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &env) == nil {
			herr.Message = env.Error
		}
		return herr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
