package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"weboptimizer-backend/internal/model"
	"weboptimizer-backend/internal/utils"
)

// Generator turns one outgoing message into one raw reply.
type Generator interface {
	Generate(ctx context.Context, body string) (string, error)
}

// HTTPClient calls a remote generation endpoint:
// POST {"body": ...} -> {"output": ...} or {"error": ...}.
type HTTPClient struct {
	endpoint string
	http     *http.Client
}

func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		http:     utils.NewHTTPClient(timeout, nil),
	}
}

// NewHTTPClientWith uses a caller supplied client, mainly for tests.
func NewHTTPClientWith(endpoint string, client *http.Client) *HTTPClient {
	return &HTTPClient{endpoint: endpoint, http: client}
}

func (c *HTTPClient) Generate(ctx context.Context, body string) (string, error) {
	payload, err := json.Marshal(model.GenerateRequest{Body: body})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	// the body is decoded before the status is looked at; an unreadable
	// body is a transport failure either way
	var out model.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &TransportError{Err: fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &EndpointError{StatusCode: resp.StatusCode, Message: out.Error}
	}
	return out.Output, nil
}
