// Package server implements the HTTP transport layer for the Agentgate
// gateway.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gateway "github.com/altshift/agentgate/internal"
	"github.com/altshift/agentgate/internal/app"
	"github.com/altshift/agentgate/internal/provider"
	"github.com/altshift/agentgate/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Chat       *app.ChatService
	Admin      *app.AdminService
	Providers  *provider.Registry
	ReadyCheck ReadyChecker       // nil = always ready (for tests)
	Metrics    *telemetry.Metrics  // nil = no metrics middleware
	Gatherer   prometheus.Gatherer // nil = no /metrics endpoint
	AdminToken string              // "" = admin routes open
	UpgradeURL string              // surfaced in rate-limit replies
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// System endpoints (no auth)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Client-facing API; the upstream key doubles as the caller's identity.
	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/identity", s.handleIdentity)

	// Admin surface
	r.Route("/admin/v1", func(r chi.Router) {
		r.Use(s.adminAuth)
		r.Get("/stats", s.handleStats)
		r.Get("/identities/{fingerprint}", s.handleIdentityLookup)
		r.Post("/tier", s.handleSetTier)
		r.Get("/usage", s.handleUsage)
		r.Get("/providers/{name}/health", s.handleProviderHealth)
	})

	return r
}

type server struct {
	deps Deps
}

// flatError is the binding error payload shape: a flat object with the
// message under "error", plus rate-limit context when applicable.
type flatError struct {
	Error   string `json:"error"`
	ResetIn string `json:"resetIn,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Upgrade string `json:"upgrade,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // response already committed
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, flatError{Error: msg})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrRateLimited), errors.Is(err, gateway.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, gateway.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrProviderError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// apiKey extracts the upstream key from Authorization: Bearer or
// X-API-Key. The key is fingerprinted downstream and never logged.
func apiKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}
	return r.Header.Get("X-API-Key")
}
