package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
	"github.com/abhirockzz/langchaingo-trip-planner/sse"
)

const PlanPath = "/api/plan"

// Streamer opens a plan stream. Cancelling ctx must close the stream.
type Streamer interface {
	Stream(ctx context.Context, req plan.PlanRequest) (io.ReadCloser, error)
}

// StatusError is returned for non-2xx answers from the plan endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("plan endpoint returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a plan server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client. httpClient may be nil. Avoid clients with a Timeout:
// it would cut long streams.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) Stream(ctx context.Context, req plan.PlanRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PlanPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", sse.ContentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	return resp.Body, nil
}
