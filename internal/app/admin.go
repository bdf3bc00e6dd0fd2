package app

import (
	"context"
	"fmt"

	gateway "github.com/altshift/agentgate/internal"
	"github.com/altshift/agentgate/internal/storage"
)

// AdminStore is the identity-store surface the admin operations need.
type AdminStore interface {
	Load(fp string) (*gateway.Identity, error)
	Update(fp string, fn func(*gateway.Identity)) (*gateway.Identity, error)
	Snapshot() []*gateway.Identity
	Count() int
}

// Stats is the aggregate projection over all identities.
type Stats struct {
	TotalIdentities int                  `json:"totalIdentities"`
	TotalCalls      int64                `json:"totalCalls"`
	TierBreakdown   map[gateway.Tier]int `json:"tierBreakdown"`
}

// AdminService implements the admin surface: lookup, aggregates, tier
// mutation, and ledger queries.
type AdminService struct {
	ids   AdminStore
	usage storage.UsageStore
}

// NewAdminService wires the admin operations. usage may be nil; ledger
// queries then report empty results.
func NewAdminService(ids AdminStore, usage storage.UsageStore) *AdminService {
	return &AdminService{ids: ids, usage: usage}
}

// Lookup returns a copy of the identity for fp, or gateway.ErrNotFound.
func (a *AdminService) Lookup(fp string) (*gateway.Identity, error) {
	return a.ids.Load(fp)
}

// Stats computes the tier population and total call count across all
// identities.
func (a *AdminService) Stats() Stats {
	st := Stats{
		TierBreakdown: map[gateway.Tier]int{
			gateway.TierFree:       0,
			gateway.TierPro:        0,
			gateway.TierTeam:       0,
			gateway.TierEnterprise: 0,
		},
	}
	for _, id := range a.ids.Snapshot() {
		st.TotalIdentities++
		st.TotalCalls += id.CallsTotal
		st.TierBreakdown[id.Tier]++
	}
	return st
}

// SetTier changes an identity's tier, optionally attaching a billing
// customer reference. No other fields are touched; the new limits apply
// to the next admission immediately.
func (a *AdminService) SetTier(fp string, tier gateway.Tier, billingCustomerID string) (*gateway.Identity, error) {
	return a.ids.Update(fp, func(rec *gateway.Identity) {
		rec.Tier = tier
		if billingCustomerID != "" {
			rec.BillingCustomerID = billingCustomerID
		}
	})
}

// Usage returns recent ledger rows matching the filter plus the total
// matching count.
func (a *AdminService) Usage(ctx context.Context, f gateway.UsageFilter) ([]gateway.UsageRecord, int, error) {
	if a.usage == nil {
		return nil, 0, nil
	}
	rows, err := a.usage.QueryUsage(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("query usage: %w", err)
	}
	total, err := a.usage.CountUsage(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count usage: %w", err)
	}
	return rows, total, nil
}
