package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	gateway "github.com/altshift/agentgate/internal"
	"github.com/altshift/agentgate/internal/app"
)

// providerHeader selects the upstream dialect; defaults to openai.
const (
	providerHeader  = "X-Provider"
	defaultProvider = "openai"
)

type chatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}

type chatResponse struct {
	OK       bool               `json:"ok"`
	Response string             `json:"response"`
	Identity identityProjection `json:"identity"`
}

// identityProjection is the public view of an identity. It never carries
// the fingerprint, the memory contents, or the raw key.
type identityProjection struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Tier       string  `json:"tier"`
	CallsToday int     `json:"callsToday"`
	CallsTotal int64   `json:"callsTotal"`
	MemorySize int     `json:"memorySize"`
	Sentiment  float64 `json:"sentiment"`
}

func projectIdentity(id *gateway.Identity) identityProjection {
	return identityProjection{
		ID:         id.ID,
		Name:       id.DisplayName,
		Tier:       string(id.Tier),
		CallsToday: id.CallsToday,
		CallsTotal: id.CallsTotal,
		MemorySize: len(id.Memory),
		Sentiment:  round2(id.Traits.Sentiment),
	}
}

// round2 truncates sentiment to two decimals for the wire.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	key := apiKey(r)
	if key == "" {
		writeError(w, http.StatusUnauthorized, "Missing API key. Send it as a Bearer token or X-API-Key header.")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	prov := r.Header.Get(providerHeader)
	if prov == "" {
		prov = defaultProvider
	}

	res, err := s.deps.Chat.Chat(r.Context(), app.ChatInput{
		Key:      key,
		Provider: prov,
		Message:  req.Message,
		Model:    req.Model,
	})
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		OK:       true,
		Response: res.Response,
		Identity: projectIdentity(res.Identity),
	})
}

// writeChatError maps pipeline errors onto the flat error payloads.
// Rate-limit rejections carry the reset hint, the tier, and the upgrade
// pointer.
func (s *server) writeChatError(w http.ResponseWriter, err error) {
	var rle *app.RateLimitError
	if errors.As(err, &rle) {
		writeJSON(w, http.StatusTooManyRequests, flatError{
			Error:   rle.Error(),
			ResetIn: rle.Hint,
			Tier:    string(rle.Tier),
			Upgrade: s.deps.UpgradeURL,
		})
		return
	}

	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Missing API key. Send it as a Bearer token or X-API-Key header.")
	case errors.Is(err, gateway.ErrBadRequest) && strings.Contains(err.Error(), "missing message"):
		writeError(w, http.StatusBadRequest, "Missing message. Send {\"message\": \"...\"} in the request body.")
	default:
		writeError(w, errorStatus(err), err.Error())
	}
}
