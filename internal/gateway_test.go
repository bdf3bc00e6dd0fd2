package gateway

import (
	"strings"
	"testing"
)

func TestFingerprint_Deterministic(t *testing.T) {
	t.Parallel()
	a := Fingerprint("sk-AAAA")
	b := Fingerprint("sk-AAAA")
	if a != b {
		t.Fatalf("fingerprint not deterministic: %q vs %q", a, b)
	}
	if len(a) != 32 {
		t.Errorf("fingerprint length = %d, want 32", len(a))
	}
	if strings.Contains(a, "sk-AAAA") {
		t.Error("fingerprint must not contain the raw key")
	}
	if a == Fingerprint("sk-BBBB") {
		t.Error("distinct keys should produce distinct fingerprints")
	}
}

func TestParseTier(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"free", "pro", "team", "enterprise"} {
		if _, ok := ParseTier(s); !ok {
			t.Errorf("ParseTier(%q) should succeed", s)
		}
	}
	if _, ok := ParseTier("platinum"); ok {
		t.Error("unknown tier should not parse")
	}
}

func TestTierLimits(t *testing.T) {
	t.Parallel()
	cases := []struct {
		tier      Tier
		capacity  int
		perMinute int
		daily     int
	}{
		{TierFree, 5, 10, 100},
		{TierPro, 100, 60, 10_000},
		{TierTeam, 1000, 300, 100_000},
		{TierEnterprise, 0, 0, 0},
	}
	for _, c := range cases {
		if got := c.tier.MemoryCapacity(); got != c.capacity {
			t.Errorf("%s capacity = %d, want %d", c.tier, got, c.capacity)
		}
		if got := c.tier.PerMinuteLimit(); got != c.perMinute {
			t.Errorf("%s per-minute = %d, want %d", c.tier, got, c.perMinute)
		}
		if got := c.tier.DailyLimit(); got != c.daily {
			t.Errorf("%s daily = %d, want %d", c.tier, got, c.daily)
		}
	}
}

func TestIdentityClone_Isolated(t *testing.T) {
	t.Parallel()
	ts := int64(1700000000000)
	id := &Identity{
		ID:         "abcd1234",
		LastCallAt: &ts,
		Memory:     []MemoryEntry{{Role: "user", Content: "hi", Timestamp: ts}},
	}
	cp := id.Clone()
	cp.Memory[0].Content = "changed"
	*cp.LastCallAt = 0
	if id.Memory[0].Content != "hi" {
		t.Error("clone shares memory backing array")
	}
	if *id.LastCallAt != ts {
		t.Error("clone shares LastCallAt pointer")
	}
}
