// Package ratelimit implements two-axis admission control: a
// per-fingerprint sliding window over the last 60 seconds, and a per-day
// counter with calendar-day reset carried on the identity record.
//
// Window state is process-local and non-durable; it resets on restart.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"

	gateway "github.com/altshift/agentgate/internal"
)

// Rejection reasons.
type Reason string

const (
	ReasonDailyExhausted Reason = "daily_exhausted"
	ReasonRateExceeded   Reason = "rate_exceeded"
)

// Reset hints surfaced to clients.
const (
	HintTomorrow  = "tomorrow"
	HintOneMinute = "1 minute"
)

const windowSpan = 60 * time.Second

// Window-table sizing. Idle windows hold only expired timestamps after
// windowSpan, so TTL eviction never discards admission state that still
// matters.
const (
	tableMaxSize = 100_000
	tableTTL     = 2 * time.Minute
)

// Decision is the structured outcome of an admission check.
type Decision struct {
	Allowed   bool
	Reason    Reason
	ResetHint string
	Tier      gateway.Tier
}

// window is the multiset of admission timestamps for one fingerprint.
type window struct {
	mu     sync.Mutex
	stamps []time.Time
}

// prune drops timestamps older than now minus the window span.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-windowSpan)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Limiter holds the per-fingerprint window table. The daily axis is
// stateless here: callers pass the identity's counter and last-call date,
// and persist the reset themselves on a successful call.
type Limiter struct {
	windows  *otter.Cache[string, *window]
	createMu sync.Mutex
	now      func() time.Time
}

// New creates a Limiter using the wall clock.
func New() (*Limiter, error) {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Limiter with an injectable clock for tests.
func NewWithClock(now func() time.Time) (*Limiter, error) {
	c, err := otter.New(&otter.Options[string, *window]{
		MaximumSize:      tableMaxSize,
		ExpiryCalculator: otter.ExpiryWriting[string, *window](tableTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create window table: %w", err)
	}
	return &Limiter{windows: c, now: now}, nil
}

// Admit evaluates both axes for one chat call. Day rollover (today differs
// from lastCallDate) zeroes the daily counter for the decision, making
// repeated evaluation without intervening calls idempotent on that axis.
// On admission the current instant is appended to the sliding window; the
// daily counter is only consumed by a successful call, which the caller
// records on the identity.
func (l *Limiter) Admit(fp string, tier gateway.Tier, callsToday int, lastCallDate string) Decision {
	now := l.now()

	// Axis A: per-day quota with calendar reset.
	if limit := tier.DailyLimit(); limit > 0 {
		effective := callsToday
		if lastCallDate != gateway.CalendarDate(now) {
			effective = 0
		}
		if effective >= limit {
			return Decision{Reason: ReasonDailyExhausted, ResetHint: HintTomorrow, Tier: tier}
		}
	}

	// Axis B: per-minute sliding window.
	if limit := tier.PerMinuteLimit(); limit > 0 {
		w := l.window(fp)
		w.mu.Lock()
		w.prune(now)
		if len(w.stamps) >= limit {
			w.mu.Unlock()
			return Decision{Reason: ReasonRateExceeded, ResetHint: HintOneMinute, Tier: tier}
		}
		w.stamps = append(w.stamps, now)
		w.mu.Unlock()
		// Re-set to refresh the entry's TTL in the table.
		l.windows.Set(fp, w)
	}

	return Decision{Allowed: true, Tier: tier}
}

// InWindow reports the current admission count for fp, pruned to the last
// 60 seconds. Used by tests and introspection.
func (l *Limiter) InWindow(fp string) int {
	w, ok := l.windows.GetIfPresent(fp)
	if !ok {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(l.now())
	return len(w.stamps)
}

// window returns the window for fp, creating it if needed. Creation is
// serialized by createMu so two concurrent first admissions share one
// window.
func (l *Limiter) window(fp string) *window {
	if w, ok := l.windows.GetIfPresent(fp); ok {
		return w
	}
	l.createMu.Lock()
	defer l.createMu.Unlock()
	if w, ok := l.windows.GetIfPresent(fp); ok {
		return w
	}
	w := &window{}
	l.windows.Set(fp, w)
	return w
}
