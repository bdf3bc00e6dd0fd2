package server

import (
	"errors"
	"net/http"

	gateway "github.com/altshift/agentgate/internal"
)

// handleIdentity returns the caller's own public projection; the key is
// fingerprinted server-side. Looking up an identity does not create one.
func (s *server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	key := apiKey(r)
	if key == "" {
		writeError(w, http.StatusUnauthorized, "Missing API key. Send it as a Bearer token or X-API-Key header.")
		return
	}

	id, err := s.deps.Admin.Lookup(gateway.Fingerprint(key))
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Identity not found")
			return
		}
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, projectIdentity(id))
}
