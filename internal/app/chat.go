// Package app implements the gateway's request orchestration: the chat
// pipeline and the admin operations, wired from the identity store, the
// admission limiter, the sentiment scorer, and the provider registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gateway "github.com/altshift/agentgate/internal"
	"github.com/altshift/agentgate/internal/memory"
	"github.com/altshift/agentgate/internal/provider"
	"github.com/altshift/agentgate/internal/ratelimit"
	"github.com/altshift/agentgate/internal/sentiment"
	"github.com/altshift/agentgate/internal/telemetry"
	"github.com/altshift/agentgate/internal/tokencount"
)

// recentTurns is how many memory entries are spliced into the upstream
// conversation, between the system prompt and the new user message.
const recentTurns = 6

// Sentiment thresholds for the categorical tone label in the system
// prompt.
const (
	tonePositiveAbove  = 0.3
	toneConcernedBelow = -0.3
)

// UsageSink accepts terminal chat outcomes for the audit ledger.
// Recording never blocks the pipeline.
type UsageSink interface {
	Record(r gateway.UsageRecord)
}

// RateLimitError is the structured admission rejection surfaced to the
// transport layer. It unwraps to ErrQuotaExceeded or ErrRateLimited so
// handlers can branch on the sentinel.
type RateLimitError struct {
	Reason ratelimit.Reason
	Hint   string
	Tier   gateway.Tier
}

func (e *RateLimitError) Error() string {
	if e.Reason == ratelimit.ReasonDailyExhausted {
		return "Daily limit reached"
	}
	return "Rate limit exceeded"
}

func (e *RateLimitError) Unwrap() error {
	if e.Reason == ratelimit.ReasonDailyExhausted {
		return gateway.ErrQuotaExceeded
	}
	return gateway.ErrRateLimited
}

// ChatInput is one chat call as seen by the orchestrator. Key is the raw
// upstream API key from the request headers; it is fingerprinted here
// and never stored.
type ChatInput struct {
	Key      string
	Provider string
	Message  string
	Model    string
}

// ChatResult is the successful pipeline outcome.
type ChatResult struct {
	Response string
	Identity *gateway.Identity
}

// ChatService runs the chat pipeline. All dependencies are explicit; the
// zero value is not usable.
type ChatService struct {
	ids       IdentityStore
	limiter   *ratelimit.Limiter
	scorer    *sentiment.Scorer
	providers *provider.Registry
	usage     UsageSink
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// IdentityStore is the store surface the pipeline needs; identity.Store
// satisfies it.
type IdentityStore interface {
	ResolveOrCreate(fp string) (*gateway.Identity, bool, error)
	Update(fp string, fn func(*gateway.Identity)) (*gateway.Identity, error)
}

// NewChatService wires the pipeline. usage and metrics may be nil.
func NewChatService(ids IdentityStore, limiter *ratelimit.Limiter, scorer *sentiment.Scorer, providers *provider.Registry, usage UsageSink, metrics *telemetry.Metrics) *ChatService {
	return &ChatService{
		ids:       ids,
		limiter:   limiter,
		scorer:    scorer,
		providers: providers,
		usage:     usage,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Chat runs one request through the pipeline:
// resolve, admit, score, compose, call, record, respond.
//
// Rejections and upstream failures leave the identity's counters and
// memory untouched; only a successful upstream reply is recorded. The
// sentiment EWMA is applied inside the record step for the same reason.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (*ChatResult, error) {
	if in.Key == "" {
		return nil, gateway.ErrUnauthorized
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: missing message", gateway.ErrBadRequest)
	}

	prov, err := s.providers.Get(in.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown provider %q", gateway.ErrBadRequest, in.Provider)
	}

	fp := gateway.Fingerprint(in.Key)
	id, _, err := s.ids.ResolveOrCreate(fp)
	if err != nil {
		return nil, err
	}

	decision := s.limiter.Admit(fp, id.Tier, id.CallsToday, id.LastCallDate)
	if !decision.Allowed {
		rle := &RateLimitError{
			Reason: decision.Reason,
			Hint:   decision.ResetHint,
			Tier:   decision.Tier,
		}
		if s.metrics != nil {
			s.metrics.RateLimitRejects.WithLabelValues(string(decision.Reason), string(decision.Tier)).Inc()
		}
		s.recordUsage(ctx, fp, in, prov.Name(), nil, 0, 429)
		return nil, rle
	}

	// Score now, fold into the EWMA only after a successful reply.
	score := s.scorer.Score(in.Message)

	req := &gateway.ChatRequest{
		Model:     in.Model,
		MaxTokens: provider.DefaultMaxTokens,
		Messages:  composeMessages(id, in.Message),
	}

	start := s.now()
	resp, err := prov.Complete(ctx, in.Key, req)
	latency := s.now().Sub(start)
	if s.metrics != nil {
		s.metrics.UpstreamDuration.WithLabelValues(prov.Name(), req.Model).Observe(latency.Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.UpstreamErrors.WithLabelValues(prov.Name(), upstreamStatus(err)).Inc()
		}
		s.recordUsage(ctx, fp, in, prov.Name(), nil, latency, 502)
		return nil, fmt.Errorf("%w: %v", gateway.ErrProviderError, err)
	}

	reply := extractReply(resp)

	now := s.now()
	today := gateway.CalendarDate(now)
	updated, err := s.ids.Update(fp, func(rec *gateway.Identity) {
		if rec.LastCallDate != today {
			rec.CallsToday = 0
		}
		memory.Append(rec, "user", in.Message, now)
		memory.Append(rec, "assistant", reply, now)
		rec.CallsToday++
		rec.CallsTotal++
		at := now.UnixMilli()
		rec.LastCallAt = &at
		rec.LastCallDate = today
		rec.Traits.Sentiment = sentiment.EWMA(rec.Traits.Sentiment, score)
	})
	if err != nil {
		// The in-memory record reflects the call; only durability failed.
		return nil, err
	}

	s.recordUsage(ctx, fp, in, prov.Name(), resp, latency, 200)
	s.countTokens(req, resp)

	return &ChatResult{Response: reply, Identity: updated}, nil
}

// composeMessages builds the upstream conversation: the system prompt,
// the six most recent memory turns with their recorded roles, then the
// full, untruncated user message.
func composeMessages(id *gateway.Identity, message string) []gateway.Message {
	msgs := make([]gateway.Message, 0, recentTurns+2)
	msgs = append(msgs, gateway.Message{Role: "system", Content: systemPrompt(id)})
	for _, e := range memory.Recent(id, recentTurns) {
		msgs = append(msgs, gateway.Message{Role: e.Role, Content: e.Content})
	}
	return append(msgs, gateway.Message{Role: "user", Content: message})
}

// systemPrompt renders the fixed persona template from the identity's
// pre-call state.
func systemPrompt(id *gateway.Identity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are assisting %s (trust score %.2f, tone: %s). ",
		id.DisplayName, id.Traits.TrustScore, toneLabel(id.Traits.Sentiment))
	fmt.Fprintf(&b, "You have interacted with this agent %d times before.\n", id.CallsTotal)
	if window := memory.ContextWindow(id, memory.DefaultWindowChars); window != "" {
		b.WriteString("\nRecent interactions:\n")
		b.WriteString(window)
	}
	b.WriteString("\nContinue the conversation naturally, maintaining continuity with past interactions.")
	return b.String()
}

// toneLabel maps the sentiment EWMA onto the categorical label used in
// the system prompt.
func toneLabel(sentiment float64) string {
	switch {
	case sentiment > tonePositiveAbove:
		return "positive"
	case sentiment < toneConcernedBelow:
		return "concerned"
	default:
		return "neutral"
	}
}

// extractReply pulls the assistant text out of the normalized envelope.
// Adapters already guarantee a fallback, but the guard keeps the
// pipeline total.
func extractReply(resp *gateway.ChatResponse) string {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "No response"
	}
	return resp.Choices[0].Message.Content
}

// recordUsage enqueues a ledger record for a terminal outcome. Token
// counts fall back to the estimation heuristic when the upstream did not
// report usage.
func (s *ChatService) recordUsage(ctx context.Context, fp string, in ChatInput, providerName string, resp *gateway.ChatResponse, latency time.Duration, status int) {
	if s.usage == nil {
		return
	}
	r := gateway.UsageRecord{
		Fingerprint: fp,
		Provider:    providerName,
		Model:       in.Model,
		LatencyMs:   int(latency.Milliseconds()),
		StatusCode:  status,
		RequestID:   gateway.RequestIDFromContext(ctx),
		CreatedAt:   s.now(),
	}
	if resp != nil {
		if resp.Model != "" {
			r.Model = resp.Model
		}
		u := resp.Usage
		if u == nil {
			u = tokencount.EstimateUsage(&gateway.ChatRequest{Messages: []gateway.Message{{Content: in.Message}}}, extractReply(resp))
		}
		r.PromptTokens = u.PromptTokens
		r.CompletionTokens = u.CompletionTokens
		r.TotalTokens = u.TotalTokens
	}
	s.usage.Record(r)
}

// countTokens feeds the tokens-processed counter from the reply's usage
// block, estimating when absent.
func (s *ChatService) countTokens(req *gateway.ChatRequest, resp *gateway.ChatResponse) {
	if s.metrics == nil {
		return
	}
	u := resp.Usage
	if u == nil {
		u = tokencount.EstimateUsage(req, extractReply(resp))
	}
	model := resp.Model
	if model == "" {
		model = req.Model
	}
	s.metrics.TokensProcessed.WithLabelValues(model, "prompt").Add(float64(u.PromptTokens))
	s.metrics.TokensProcessed.WithLabelValues(model, "completion").Add(float64(u.CompletionTokens))
}

// upstreamStatus renders the provider error's HTTP status for the error
// counter label, or "transport" for network-level failures.
func upstreamStatus(err error) string {
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%d", apiErr.StatusCode)
	}
	return "transport"
}
