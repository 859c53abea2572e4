package smoketest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/okian/kayfabe/internal/domain/types"
)

// ErrStatus is returned when the service answers with an unexpected status.
var ErrStatus = errors.New("unexpected status")

// HTTPClient wraps http.Client with the service base URL and window query.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	window  url.Values
}

func newHTTPClient(cfg *Config) *HTTPClient {
	q := url.Values{}
	if cfg.To != "" {
		q.Set("to", cfg.To)
	}
	if cfg.Months > 0 {
		q.Set("months", strconv.Itoa(cfg.Months))
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		window:  q,
	}
}

// url joins path onto the base URL with the window parameters and extra.
func (c *HTTPClient) url(path string, extra url.Values) string {
	q := url.Values{}
	for k, v := range c.window {
		q[k] = v
	}
	for k, v := range extra {
		q[k] = v
	}
	if len(q) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + q.Encode()
}

// getJSON fetches path and decodes the body into v when the status is want.
func (c *HTTPClient) getJSON(ctx context.Context, path string, extra url.Values, want int, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path, extra), http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, want, v)
}

// postJSON posts body as JSON and decodes the response into v.
func (c *HTTPClient) postJSON(ctx context.Context, path string, body any, v any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return resp.StatusCode, statusError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *HTTPClient) do(req *http.Request, want int, v any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != want {
		return statusError(resp.StatusCode, raw)
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// StatusError carries a non-success response from the service.
type StatusError struct {
	Status int
	types.ErrorResponse
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d %s: %s", e.Status, e.Code, e.Message)
}

// Is matches ErrStatus.
func (e *StatusError) Is(target error) bool { return target == ErrStatus }

func statusError(status int, body []byte) error {
	e := &StatusError{Status: status}
	_ = json.Unmarshal(body, &e.ErrorResponse)
	return e
}
