// Package http is the JSON transport used to talk to the assistant backend.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"moodle-assistant/internal/common/errors"
)

// DefaultTimeout bounds every request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

const serviceName = "assistant-api"

// RequestInterceptor may decorate an outgoing request. A non-nil error aborts it.
type RequestInterceptor func(req *http.Request) error

// ResponseInterceptor observes every response before its status is mapped to an error.
type ResponseInterceptor func(resp *http.Response)

// Client sends JSON requests relative to a fixed base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu                   sync.RWMutex
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientWithHTTP uses a caller-supplied http.Client, mostly for tests.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: hc,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// UseRequest appends a request interceptor. Interceptors run in registration order.
func (c *Client) UseRequest(fn RequestInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestInterceptors = append(c.requestInterceptors, fn)
}

// UseResponse appends a response interceptor.
func (c *Client) UseResponse(fn ResponseInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseInterceptors = append(c.responseInterceptors, fn)
}

// Do sends body (when non-nil) as JSON to path and decodes a 2xx reply into out
// (when non-nil). It returns the HTTP status, or 0 when no response arrived.
// Failures are *errors.StandardError values: 401 maps to SESSION_UNAUTHORIZED,
// other non-2xx statuses to API_ERROR carrying the server message.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (int, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return 0, err
	}

	c.mu.RLock()
	reqInterceptors := append([]RequestInterceptor(nil), c.requestInterceptors...)
	respInterceptors := append([]ResponseInterceptor(nil), c.responseInterceptors...)
	c.mu.RUnlock()

	for _, intercept := range reqInterceptors {
		if err := intercept(req); err != nil {
			return 0, err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return 0, errors.NewTimeoutError(serviceName, err)
		}
		return 0, errors.NewTransportError(serviceName, err)
	}
	defer resp.Body.Close()

	for _, intercept := range respInterceptors {
		intercept(resp)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.NewTransportError(serviceName, fmt.Errorf("failed to read response body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return resp.StatusCode, errors.NewUnauthorizedError(ServerMessage(payload))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return resp.StatusCode, errors.NewAPIError(resp.StatusCode, ServerMessage(payload))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return resp.StatusCode, errors.NewMalformedResponseError(serviceName, fmt.Errorf("empty response body"))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return resp.StatusCode, errors.NewMalformedResponseError(serviceName, err)
	}

	return resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// ServerMessage extracts a human-readable reason from an error body. It looks at
// the "message", "detail" and "error" fields in that order.
func ServerMessage(payload []byte) string {
	var body map[string]interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	for _, key := range []string{"message", "detail", "error"} {
		if s, ok := body[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
