// Package syncclient is the HTTP client for the remote that receives
// queued scan actions.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Client is an HTTP client for the action intake endpoint.
type Client struct {
	BaseURL  string
	DeviceID string
	HTTP     *http.Client
}

// New creates a new client. Per-request deadlines come from the caller's
// context; the HTTP timeout is only a backstop.
func New(baseURL, deviceID string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// ActionRequest is the body for POST /v1/actions.
type ActionRequest struct {
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
	Attempt   int             `json:"attempt"`
}

// ActionResponse is the response from POST /v1/actions.
type ActionResponse struct {
	ID        string `json:"id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// PushAction delivers one action. The idempotency key lets the receiver
// drop a repeat of an action it already applied; a 409 for a key it has
// seen counts as delivered.
func (c *Client) PushAction(ctx context.Context, idempotencyKey string, req *ActionRequest) (*ActionResponse, error) {
	var resp ActionResponse
	status, err := c.do(ctx, http.MethodPost, "/v1/actions", map[string]string{"Idempotency-Key": idempotencyKey}, req, &resp)
	if status == http.StatusConflict {
		return &ActionResponse{Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if _, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// do executes a request and returns the HTTP status alongside any error.
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, result any) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(respBody))
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			msg = apiErr.Error()
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return resp.StatusCode, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		case http.StatusForbidden:
			return resp.StatusCode, fmt.Errorf("%w: %s", ErrForbidden, msg)
		case http.StatusNotFound:
			return resp.StatusCode, fmt.Errorf("%w: %s", ErrNotFound, msg)
		}
		if apiErr.Code != "" {
			return resp.StatusCode, &apiErr
		}
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
