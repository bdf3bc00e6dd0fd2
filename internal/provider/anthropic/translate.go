package anthropic

import (
	"github.com/tidwall/gjson"

	gateway "github.com/altshift/agentgate/internal"
	"github.com/altshift/agentgate/internal/provider"
)

// request is the messages-API request body. System instructions ride in
// a top-level field rather than in the messages list.
type request struct {
	Model     string            `json:"model"`
	MaxTokens int               `json:"max_tokens"`
	System    string            `json:"system,omitempty"`
	Messages  []gateway.Message `json:"messages"`
}

// translateRequest maps the gateway envelope to the messages dialect.
// The first system message becomes the top-level system field; the rest
// of the conversation passes through in order.
func translateRequest(req *gateway.ChatRequest) request {
	out := request{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages:  make([]gateway.Message, 0, len(req.Messages)),
	}
	if out.Model == "" {
		out.Model = DefaultModel
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = provider.DefaultMaxTokens
	}
	for _, m := range req.Messages {
		if m.Role == "system" && out.System == "" {
			out.System = m.Content
			continue
		}
		out.Messages = append(out.Messages, m)
	}
	return out
}

// normalize maps a messages-API reply into the gateway envelope. Content
// arrives as a block list; the first text block is the assistant turn.
// A missing block degrades to "No response".
func normalize(body []byte, model string) *gateway.ChatResponse {
	result := gjson.ParseBytes(body)

	content := result.Get("content.0.text").String()
	if content == "" {
		content = "No response"
	}

	out := &gateway.ChatResponse{
		ID:    result.Get("id").String(),
		Model: result.Get("model").String(),
		Choices: []gateway.Choice{{
			Message:      gateway.Message{Role: "assistant", Content: content},
			FinishReason: finishReason(result.Get("stop_reason").String()),
		}},
	}
	if out.Model == "" {
		if model == "" {
			model = DefaultModel
		}
		out.Model = model
	}
	if u := result.Get("usage"); u.Exists() {
		in := int(u.Get("input_tokens").Int())
		outTok := int(u.Get("output_tokens").Int())
		out.Usage = &gateway.Usage{
			PromptTokens:     in,
			CompletionTokens: outTok,
			TotalTokens:      in + outTok,
		}
	}
	return out
}

// finishReason maps stop_reason values onto the OpenAI vocabulary.
func finishReason(stop string) string {
	switch stop {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return stop
	}
}
