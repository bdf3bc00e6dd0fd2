package tokencount

import (
	"testing"

	gateway "github.com/altshift/agentgate/internal"
)

func TestCountText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{"hello world!", 3},
	}
	for _, c := range cases {
		if got := CountText(c.in); got != c.want {
			t.Errorf("CountText(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestEstimateMessages(t *testing.T) {
	t.Parallel()

	msgs := []gateway.Message{
		{Role: "system", Content: "abcdabcd"}, // 2 tokens + 4 framing
		{Role: "user", Content: "abcd"},       // 1 token + 4 framing
	}
	if got := EstimateMessages(msgs); got != 11 {
		t.Errorf("EstimateMessages = %d, want 11", got)
	}
}

func TestEstimateUsage(t *testing.T) {
	t.Parallel()

	u := EstimateUsage(&gateway.ChatRequest{
		Messages: []gateway.Message{{Role: "user", Content: "abcd"}},
	}, "abcdabcd")
	if u.PromptTokens != 5 || u.CompletionTokens != 2 || u.TotalTokens != 7 {
		t.Errorf("usage = %+v", u)
	}
}
