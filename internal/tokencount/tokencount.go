// Package tokencount estimates token counts for chat payloads when the
// upstream reply does not report usage. The heuristic is four characters
// per token, which tracks English prose closely enough for metering.
package tokencount

import (
	gateway "github.com/altshift/agentgate/internal"
)

const charsPerToken = 4

// CountText estimates the token count of a single text.
func CountText(s string) int {
	if s == "" {
		return 0
	}
	n := len([]rune(s))
	return (n + charsPerToken - 1) / charsPerToken
}

// EstimateMessages estimates the prompt token count of a message list,
// including a small per-message framing overhead.
func EstimateMessages(msgs []gateway.Message) int {
	total := 0
	for _, m := range msgs {
		total += CountText(m.Content) + 4
	}
	return total
}

// EstimateUsage backfills a usage block from request and reply text when
// the upstream omitted one.
func EstimateUsage(req *gateway.ChatRequest, completion string) *gateway.Usage {
	prompt := EstimateMessages(req.Messages)
	out := CountText(completion)
	return &gateway.Usage{
		PromptTokens:     prompt,
		CompletionTokens: out,
		TotalTokens:      prompt + out,
	}
}
