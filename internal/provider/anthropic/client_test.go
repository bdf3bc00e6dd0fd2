package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	gateway "github.com/altshift/agentgate/internal"
	"github.com/altshift/agentgate/internal/provider"
)

const reply = `{
	"id": "msg_01",
	"model": "claude-3-5-sonnet-20241022",
	"content": [{"type": "text", "text": "Hello there"}],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 12, "output_tokens": 5}
}`

func TestComplete_RequestShape(t *testing.T) {
	t.Parallel()

	var got struct {
		path    string
		key     string
		version string
		body    map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.key = r.Header.Get("x-api-key")
		got.version = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&got.body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Write([]byte(reply))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	resp, err := c.Complete(context.Background(), "sk-ant-test", &gateway.ChatRequest{
		Messages: []gateway.Message{
			{Role: "system", Content: "You are helpful."},
			{Role: "user", Content: "hello"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if got.path != "/v1/messages" {
		t.Errorf("path = %q", got.path)
	}
	if got.key != "sk-ant-test" {
		t.Errorf("x-api-key = %q", got.key)
	}
	if got.version != APIVersion {
		t.Errorf("anthropic-version = %q", got.version)
	}
	if got.body["system"] != "You are helpful." {
		t.Errorf("system = %v", got.body["system"])
	}
	msgs, _ := got.body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v, want system extracted", got.body["messages"])
	}
	if got.body["model"] != DefaultModel {
		t.Errorf("model = %v", got.body["model"])
	}
	if got.body["max_tokens"] != float64(provider.DefaultMaxTokens) {
		t.Errorf("max_tokens = %v", got.body["max_tokens"])
	}

	if resp.Choices[0].Message.Content != "Hello there" {
		t.Errorf("content = %q", resp.Choices[0].Message.Content)
	}
	if resp.Choices[0].Message.Role != "assistant" {
		t.Errorf("role = %q", resp.Choices[0].Message.Role)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish_reason = %q", resp.Choices[0].FinishReason)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 17 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestComplete_EmptyContentFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"msg_02","content":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	resp, err := c.Complete(context.Background(), "sk-ant-test", &gateway.ChatRequest{
		Messages: []gateway.Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := resp.Choices[0].Message.Content; got != "No response" {
		t.Errorf("content = %q, want fallback", got)
	}
}

func TestComplete_UpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens: required"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.Complete(context.Background(), "sk-ant-test", &gateway.ChatRequest{
		Messages: []gateway.Message{{Role: "user", Content: "hello"}},
	})
	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *provider.APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Message != "max_tokens: required" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestTranslateRequest(t *testing.T) {
	t.Parallel()

	out := translateRequest(&gateway.ChatRequest{
		Model:     "claude-3-opus-20240229",
		MaxTokens: 256,
		Messages: []gateway.Message{
			{Role: "system", Content: "first system"},
			{Role: "user", Content: "u1"},
			{Role: "system", Content: "second system"},
			{Role: "assistant", Content: "a1"},
		},
	})
	if out.System != "first system" {
		t.Errorf("system = %q", out.System)
	}
	// Only the first system message is hoisted; later ones pass through.
	if len(out.Messages) != 3 {
		t.Fatalf("messages = %+v", out.Messages)
	}
	if out.Messages[1].Content != "second system" {
		t.Errorf("second system message should stay in the list: %+v", out.Messages)
	}
	if out.Model != "claude-3-opus-20240229" || out.MaxTokens != 256 {
		t.Errorf("model/max_tokens = %q/%d", out.Model, out.MaxTokens)
	}
}

func TestFinishReason(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"end_turn":      "stop",
		"stop_sequence": "stop",
		"max_tokens":    "length",
		"tool_use":      "tool_use",
	}
	for in, want := range cases {
		if got := finishReason(in); got != want {
			t.Errorf("finishReason(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	if got := New("", nil).Name(); got != "anthropic" {
		t.Errorf("Name() = %q", got)
	}
}
