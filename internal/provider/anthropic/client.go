// Package anthropic implements the gateway.Provider adapter for the
// Anthropic messages API. Requests and replies are translated between
// the gateway's OpenAI-shaped envelope and the messages dialect.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	gateway "github.com/altshift/agentgate/internal"
	"github.com/altshift/agentgate/internal/provider"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	providerName   = "anthropic"

	// APIVersion is the pinned anthropic-version header value.
	APIVersion = "2023-06-01"

	// DefaultModel is used when a request names no model.
	DefaultModel = "claude-3-5-sonnet-20241022"
)

var _ gateway.Provider = (*Client)(nil)

// Client is an Anthropic provider adapter. The API key is supplied per
// call by the gateway's client; the adapter holds no credentials.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates an Anthropic Client. If baseURL is empty, it defaults to
// "https://api.anthropic.com".
func New(baseURL string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}
}

// Name returns the provider selector.
func (c *Client) Name() string { return providerName }

// Complete translates the request into the messages dialect, sends it
// with x-api-key authorization, and normalizes the reply back into the
// gateway envelope.
func (c *Client) Complete(ctx context.Context, apiKey string, req *gateway.ChatRequest) (*gateway.ChatResponse, error) {
	body, err := json.Marshal(translateRequest(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.ParseAPIError(providerName, resp)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}
	if !gjson.ValidBytes(respBody) {
		return nil, fmt.Errorf("anthropic: invalid response body")
	}
	return normalize(respBody, req.Model), nil
}

// HealthCheck verifies connectivity by issuing a HEAD request to the
// messages endpoint. Any transport-level reply means the upstream is
// reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/v1/messages", nil)
	if err != nil {
		return fmt.Errorf("anthropic: health check: %w", err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("anthropic: health check: %w", err)
	}
	resp.Body.Close()
	return nil
}
