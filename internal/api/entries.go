package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/VenkatGGG/tiercoord/pkg/httpx"
)

const clientIDHeader = "X-Client-ID"

// handleEntry serves the data path for one tier entry. Data operations skip
// the lifecycle lock entirely; admission is just "tier exists and caller
// holds a lease", so a destroyed tier answers not_found and a revoked client
// answers not_attached.
func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request, tierName, key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_key", "entry key is required")
		return
	}
	clientID := strings.TrimSpace(r.Header.Get(clientIDHeader))
	if clientID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_client_id", "X-Client-ID header is required")
		return
	}

	level, err := s.coord.Authorize(tierName, clientID)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	w.Header().Set("X-Tier-Consistency", string(level))

	switch r.Method {
	case http.MethodGet:
		value, ok, err := s.coord.Store().Get(r.Context(), tierName, key)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "store_failed", err.Error())
			return
		}
		if !ok {
			httpx.WriteError(w, http.StatusNotFound, "no_such_entry", "entry not found")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(value))
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
		if err := s.coord.Store().Put(r.Context(), tierName, key, string(body)); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "store_failed", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.coord.Store().Remove(r.Context(), tierName, key); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "store_failed", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
