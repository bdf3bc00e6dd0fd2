package sentiment

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore_Basic(t *testing.T) {
	t.Parallel()
	s := New()

	cases := []struct {
		text string
		want float64
	}{
		{"Hello, this is wonderful", 1.0 / 3},
		{"this is terrible", -1.0 / 3},
		{"neutral statement about weather", 0},
		{"great good love", 1},
		{"great good love amazing excellent", 1}, // clamped
		{"bad awful hate angry", -1},             // clamped
		{"great but also bad", 0},
	}
	for _, c := range cases {
		if got := s.Score(c.text); !almostEqual(got, c.want) {
			t.Errorf("Score(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestScore_CaseInsensitiveSubstring(t *testing.T) {
	t.Parallel()
	s := New()
	if got := s.Score("GREAT stuff"); !almostEqual(got, 1.0/3) {
		t.Errorf("uppercase match failed, got %v", got)
	}
	// Substring match is specified: "thankful" contains "thank".
	if got := s.Score("thankful"); !almostEqual(got, 1.0/3) {
		t.Errorf("substring match failed, got %v", got)
	}
}

func TestScore_Deterministic(t *testing.T) {
	t.Parallel()
	s := New()
	const text = "happy happy sad wonderful"
	first := s.Score(text)
	for range 10 {
		if got := s.Score(text); got != first {
			t.Fatalf("score varies across calls: %v vs %v", got, first)
		}
	}
}

func TestScore_CustomLexicons(t *testing.T) {
	t.Parallel()
	s := NewWithLexicons([]string{"up"}, []string{"down"})
	if got := s.Score("up up and away"); !almostEqual(got, 1.0/3) {
		t.Errorf("custom positive = %v, want 1/3", got)
	}
	if got := s.Score("down"); !almostEqual(got, -1.0/3) {
		t.Errorf("custom negative = %v, want -1/3", got)
	}
}

func TestEWMA_StaysInRange(t *testing.T) {
	t.Parallel()
	v := 0.0
	for range 1000 {
		v = EWMA(v, 1)
		if v < -1 || v > 1 {
			t.Fatalf("EWMA escaped range: %v", v)
		}
	}
	v = 0
	for range 1000 {
		v = EWMA(v, -1)
		if v < -1 || v > 1 {
			t.Fatalf("EWMA escaped range: %v", v)
		}
	}
}

func TestEWMA_FirstContact(t *testing.T) {
	t.Parallel()
	// 0.9*0 + 0.1*(1/3)
	got := EWMA(0, 1.0/3)
	if !almostEqual(got, 1.0/30) {
		t.Errorf("EWMA(0, 1/3) = %v, want %v", got, 1.0/30)
	}
}
