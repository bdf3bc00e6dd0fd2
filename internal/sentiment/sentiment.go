// Package sentiment scores message text on a fixed [-1, 1] scale using
// closed lexicons of positive and negative tokens. Deterministic by
// construction; the lexicons are injectable so tests can substitute.
package sentiment

import "strings"

// Default lexicons. Matching is case-insensitive substring containment;
// whole-word boundaries are intentionally not required.
var (
	DefaultPositive = []string{
		"happy", "great", "good", "wonderful", "excited",
		"love", "amazing", "excellent", "thank", "awesome",
	}
	DefaultNegative = []string{
		"sad", "bad", "terrible", "awful", "hate",
		"angry", "frustrated", "disappointed", "wrong", "fail",
	}
)

// Scorer is a pure, stateless text scorer.
type Scorer struct {
	positive []string
	negative []string
}

// New returns a Scorer with the default lexicons.
func New() *Scorer {
	return NewWithLexicons(DefaultPositive, DefaultNegative)
}

// NewWithLexicons returns a Scorer over custom lexicons. Tokens are
// lowercased once at construction.
func NewWithLexicons(positive, negative []string) *Scorer {
	return &Scorer{
		positive: lower(positive),
		negative: lower(negative),
	}
}

// Score maps text to [-1, 1]: clamp((pos - neg) / 3) where pos and neg
// count lexicon tokens contained in the lowercased text.
func (s *Scorer) Score(text string) float64 {
	t := strings.ToLower(text)
	var pos, neg int
	for _, w := range s.positive {
		if strings.Contains(t, w) {
			pos++
		}
	}
	for _, w := range s.negative {
		if strings.Contains(t, w) {
			neg++
		}
	}
	return Clamp(float64(pos-neg) / 3)
}

// EWMA folds a new score into a running sentiment with factor 0.9/0.1,
// clamped so the result stays in [-1, 1] for all input sequences.
func EWMA(current, score float64) float64 {
	return Clamp(0.9*current + 0.1*score)
}

// Clamp bounds v to [-1, 1].
func Clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func lower(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}
