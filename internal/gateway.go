// Package gateway defines domain types and interfaces for the Agentgate
// LLM agent gateway. This package has no project imports -- it is the
// dependency root.
package gateway

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// --- Tiers ---

// Tier is the subscription class of an identity. It determines memory
// capacity and rate/quota limits.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierTeam       Tier = "team"
	TierEnterprise Tier = "enterprise"
)

// ParseTier validates a tier string. Returns false for unknown tiers.
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierFree, TierPro, TierTeam, TierEnterprise:
		return Tier(s), true
	}
	return "", false
}

// MemoryCapacity returns the maximum number of memory entries for the tier.
// Enterprise is unbounded and returns 0.
func (t Tier) MemoryCapacity() int {
	switch t {
	case TierPro:
		return 100
	case TierTeam:
		return 1000
	case TierEnterprise:
		return 0
	default:
		return 5
	}
}

// PerMinuteLimit returns the sliding-window admission limit.
// 0 means unlimited.
func (t Tier) PerMinuteLimit() int {
	switch t {
	case TierPro:
		return 60
	case TierTeam:
		return 300
	case TierEnterprise:
		return 0
	default:
		return 10
	}
}

// DailyLimit returns the calendar-day admission limit. 0 means unlimited.
func (t Tier) DailyLimit() int {
	switch t {
	case TierPro:
		return 10_000
	case TierTeam:
		return 100_000
	case TierEnterprise:
		return 0
	default:
		return 100
	}
}

// --- Identity ---

// MemoryEntry is one conversational turn retained for context.
// Content is truncated to MaxMemoryEntryChars on insertion.
type MemoryEntry struct {
	Role      string `json:"role"` // "user" or "assistant"
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // ms since epoch
}

// MaxMemoryEntryChars is the per-entry storage truncation limit.
// It applies to storage only; upstream requests carry the full message.
const MaxMemoryEntryChars = 500

// Traits holds the behavioral signals tracked per identity.
// TrustScore and Contradictions are carried and persisted but have no
// update rule in the core; they are reserved.
type Traits struct {
	Sentiment      float64 `json:"sentiment"`   // EWMA, always in [-1, 1]
	TrustScore     float64 `json:"trust_score"` // in [0, 1], initialized 0.5
	Contradictions int     `json:"contradictions"`
}

// Identity is the persistent record representing one upstream-key holder.
// The raw upstream key is never stored; Fingerprint is its only trace.
type Identity struct {
	ID                string        `json:"id"`
	Fingerprint       string        `json:"fingerprint"`
	DisplayName       string        `json:"display_name"`
	Tier              Tier          `json:"tier"`
	CreatedAt         int64         `json:"created_at"` // ms since epoch
	CallsToday        int           `json:"calls_today"`
	CallsTotal        int64         `json:"calls_total"`
	LastCallAt        *int64        `json:"last_call_at"`   // ms since epoch, nil until first call
	LastCallDate      string        `json:"last_call_date"` // "2006-01-02", server-local
	Memory            []MemoryEntry `json:"memory"`
	Traits            Traits        `json:"traits"`
	BillingCustomerID string        `json:"billing_customer_id,omitempty"`
}

// Clone returns a deep copy safe to hand outside the store's lock.
func (id *Identity) Clone() *Identity {
	cp := *id
	if id.LastCallAt != nil {
		v := *id.LastCallAt
		cp.LastCallAt = &v
	}
	cp.Memory = make([]MemoryEntry, len(id.Memory))
	copy(cp.Memory, id.Memory)
	return &cp
}

// Fingerprint returns the deterministic digest used as an identity's
// primary key: SHA-256 of the raw upstream key, truncated to 32 hex chars.
// One-way; never reversed to recover the key.
func Fingerprint(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])[:32]
}

// NewIdentityID returns a short random hex handle for a new identity.
func NewIdentityID() string {
	var b [4]byte
	rand.Read(b[:]) //nolint:errcheck // crypto/rand.Read never fails
	return hex.EncodeToString(b[:])
}

// CalendarDate formats t as a calendar date in the server's local time
// zone. Day-rollover detection compares these strings.
func CalendarDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// --- Chat envelope ---

// Message is a chat message in the OpenAI wire shape.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is the uniform upstream request built by the orchestrator.
// Adapters translate it into their provider's dialect.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

// ChatResponse is the normalized reply envelope, shaped like an OpenAI
// chat completion regardless of the upstream dialect.
type ChatResponse struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is a single completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage holds token usage statistics when the upstream reports them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Provider ---

// Provider is the interface all upstream dialect adapters implement.
// The upstream API key is supplied per call; the gateway never stores it.
type Provider interface {
	// Name returns the provider selector ("openai", "anthropic").
	Name() string
	// Complete sends a non-streaming chat request and returns the
	// normalized reply.
	Complete(ctx context.Context, apiKey string, req *ChatRequest) (*ChatResponse, error)
	// HealthCheck verifies connectivity to the provider.
	HealthCheck(ctx context.Context) error
}

// --- Usage ledger ---

// UsageRecord is one terminal chat outcome in the audit ledger.
type UsageRecord struct {
	ID               string    `json:"id"`
	Fingerprint      string    `json:"fingerprint"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int       `json:"latency_ms"`
	StatusCode       int       `json:"status_code"`
	RequestID        string    `json:"request_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageFilter selects ledger rows for admin queries.
type UsageFilter struct {
	Fingerprint string
	Limit       int
	Offset      int
}

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// RequestIDFromContext extracts the request ID from context, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}
