// Package storage defines persistence interfaces for the usage ledger.
package storage

import (
	"context"
	"time"

	gateway "github.com/altshift/agentgate/internal"
)

// UsageStore manages the append-only chat usage ledger.
type UsageStore interface {
	InsertUsage(ctx context.Context, records []gateway.UsageRecord) error
	QueryUsage(ctx context.Context, f gateway.UsageFilter) ([]gateway.UsageRecord, error)
	CountUsage(ctx context.Context, f gateway.UsageFilter) (int, error)
	DeleteUsageBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
