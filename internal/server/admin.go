package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	gateway "github.com/altshift/agentgate/internal"
)

const healthProbeTimeout = 5 * time.Second

// adminIdentity extends the public projection with created-at and the
// reserved traits. Memory contents and the fingerprint stay private.
type adminIdentity struct {
	identityProjection
	CreatedAt      int64   `json:"createdAt"`
	TrustScore     float64 `json:"trustScore"`
	Contradictions int     `json:"contradictions"`
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Admin.Stats())
}

func (s *server) handleIdentityLookup(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")
	id, err := s.deps.Admin.Lookup(fp)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Identity not found")
			return
		}
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, adminIdentity{
		identityProjection: projectIdentity(id),
		CreatedAt:          id.CreatedAt,
		TrustScore:         id.Traits.TrustScore,
		Contradictions:     id.Traits.Contradictions,
	})
}

type setTierRequest struct {
	Fingerprint       string `json:"fingerprint"`
	Tier              string `json:"tier"`
	BillingCustomerID string `json:"billing_customer_id,omitempty"`
}

func (s *server) handleSetTier(w http.ResponseWriter, r *http.Request) {
	var req setTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	tier, ok := gateway.ParseTier(req.Tier)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown tier: "+req.Tier)
		return
	}

	if _, err := s.deps.Admin.SetTier(req.Fingerprint, tier, req.BillingCustomerID); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Identity not found")
			return
		}
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "tier": tier})
}

func (s *server) handleUsage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := gateway.UsageFilter{Fingerprint: q.Get("fingerprint")}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		f.Offset = v
	}

	rows, total, err := s.deps.Admin.Usage(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []gateway.UsageRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": rows, "total": total})
}

func (s *server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, err := s.deps.Providers.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()
	if err := p.HealthCheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"provider": name,
			"healthy":  false,
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": name, "healthy": true})
}
