// Package openai implements the gateway.Provider adapter for the
// OpenAI chat completions API.
package openai

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
	defaultBaseURL = "https://api.openai.com/v1"
	providerName   = "openai"

	// DefaultModel is used when a request names no model.
	DefaultModel = "gpt-4"
)

var _ gateway.Provider = (*Client)(nil)

// Client is an OpenAI provider adapter. The API key is supplied per call
// by the gateway's client; the adapter holds no credentials.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates an OpenAI Client. If baseURL is empty, it defaults to
// "https://api.openai.com/v1".
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

// request is the chat-completions request body.
type request struct {
	Model     string            `json:"model"`
	Messages  []gateway.Message `json:"messages"`
	MaxTokens int               `json:"max_tokens"`
}

// Complete sends a non-streaming chat completion request with bearer
// authorization and normalizes the reply.
func (c *Client) Complete(ctx context.Context, apiKey string, req *gateway.ChatRequest) (*gateway.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = provider.DefaultMaxTokens
	}

	body, err := json.Marshal(request{
		Model:     model,
		Messages:  req.Messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.ParseAPIError(providerName, resp)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if !gjson.ValidBytes(respBody) {
		return nil, fmt.Errorf("openai: invalid response body")
	}
	return normalize(respBody, model), nil
}

// normalize shapes the upstream reply into the gateway envelope. A
// missing content field degrades to "No response" so the pipeline always
// has something to append.
func normalize(body []byte, model string) *gateway.ChatResponse {
	result := gjson.ParseBytes(body)

	content := result.Get("choices.0.message.content").String()
	if content == "" {
		content = "No response"
	}

	out := &gateway.ChatResponse{
		ID:    result.Get("id").String(),
		Model: result.Get("model").String(),
		Choices: []gateway.Choice{{
			Message:      gateway.Message{Role: "assistant", Content: content},
			FinishReason: result.Get("choices.0.finish_reason").String(),
		}},
	}
	if out.Model == "" {
		out.Model = model
	}
	if u := result.Get("usage"); u.Exists() {
		out.Usage = &gateway.Usage{
			PromptTokens:     int(u.Get("prompt_tokens").Int()),
			CompletionTokens: int(u.Get("completion_tokens").Int()),
			TotalTokens:      int(u.Get("total_tokens").Int()),
		}
	}
	return out
}

// HealthCheck verifies connectivity by issuing a HEAD request to the
// models endpoint. No credentials are attached; a transport-level reply
// of any status means the upstream is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("openai: health check: %w", err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("openai: health check: %w", err)
	}
	resp.Body.Close()
	return nil
}
