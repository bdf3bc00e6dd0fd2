// Package testutil provides configurable test fakes for gateway interfaces.
package testutil

import (
	"context"
	"sync"

	gateway "github.com/altshift/agentgate/internal"
)

// FakeProvider is a configurable gateway.Provider for testing. It
// records the requests it receives.
type FakeProvider struct {
	ProviderName string
	CompleteFn   func(ctx context.Context, apiKey string, req *gateway.ChatRequest) (*gateway.ChatResponse, error)
	HealthFn     func(ctx context.Context) error

	mu       sync.Mutex
	requests []*gateway.ChatRequest
}

// Name returns the configured provider name.
func (f *FakeProvider) Name() string { return f.ProviderName }

// Complete records the request and delegates to CompleteFn, or returns a
// canned reply.
func (f *FakeProvider) Complete(ctx context.Context, apiKey string, req *gateway.ChatRequest) (*gateway.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.CompleteFn != nil {
		return f.CompleteFn(ctx, apiKey, req)
	}
	return &gateway.ChatResponse{
		ID:    "chatcmpl-fake",
		Model: req.Model,
		Choices: []gateway.Choice{{
			Message:      gateway.Message{Role: "assistant", Content: "fake reply"},
			FinishReason: "stop",
		}},
		Usage: &gateway.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// HealthCheck delegates to HealthFn or reports healthy.
func (f *FakeProvider) HealthCheck(ctx context.Context) error {
	if f.HealthFn != nil {
		return f.HealthFn(ctx)
	}
	return nil
}

// Requests returns the requests received so far.
func (f *FakeProvider) Requests() []*gateway.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*gateway.ChatRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// FakeUsageSink collects usage records in memory.
type FakeUsageSink struct {
	mu      sync.Mutex
	records []gateway.UsageRecord
}

// Record appends r.
func (f *FakeUsageSink) Record(r gateway.UsageRecord) {
	f.mu.Lock()
	f.records = append(f.records, r)
	f.mu.Unlock()
}

// Records returns the records received so far.
func (f *FakeUsageSink) Records() []gateway.UsageRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gateway.UsageRecord, len(f.records))
	copy(out, f.records)
	return out
}
