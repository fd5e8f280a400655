package api

import (
	"net/http"
	"strings"

	"github.com/VenkatGGG/tiercoord/internal/coordinator"
	"github.com/VenkatGGG/tiercoord/internal/lease"
	"github.com/VenkatGGG/tiercoord/internal/tier"
	"github.com/VenkatGGG/tiercoord/pkg/httpx"
)

type createTierRequest struct {
	TierName    string `json:"tier_name"`
	PoolName    string `json:"pool_name"`
	SizeBytes   int64  `json:"size_bytes"`
	Consistency string `json:"consistency"`
}

type attachRequest struct {
	ClientID string `json:"client_id"`
}

type attachResponse struct {
	Lease lease.Lease `json:"lease"`
	Tier  tier.Info   `json:"tier"`
}

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createTierRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		s.idempotent(w, r, "create-tier", func(w http.ResponseWriter) {
			created, err := s.coord.Create(r.Context(), coordinator.CreateInput{
				TierName:    req.TierName,
				PoolName:    req.PoolName,
				SizeBytes:   req.SizeBytes,
				Consistency: tier.Consistency(strings.TrimSpace(req.Consistency)),
			})
			if err != nil {
				writeCoordinatorError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusCreated, created)
		})
	case http.MethodGet:
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"tiers": s.coord.ListTiers()})
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// handleTierByName routes /v1/tiers/{name}, /v1/tiers/{name}/attach,
// /v1/tiers/{name}/detach and /v1/tiers/{name}/entries/{key}.
func (s *Server) handleTierByName(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/tiers/")
	parts := strings.SplitN(rest, "/", 3)
	name := strings.TrimSpace(parts[0])
	if name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_tier_name", "tier name is required")
		return
	}

	if len(parts) == 1 {
		s.handleTier(w, r, name)
		return
	}

	switch parts[1] {
	case "attach":
		s.handleAttach(w, r, name)
	case "detach":
		s.handleDetach(w, r, name)
	case "entries":
		key := ""
		if len(parts) == 3 {
			key = parts[2]
		}
		s.handleEntry(w, r, name, key)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleTier(w http.ResponseWriter, r *http.Request, name string) {
	switch r.Method {
	case http.MethodGet:
		info, err := s.coord.GetTier(name)
		if err != nil {
			writeCoordinatorError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, info)
	case http.MethodDelete:
		s.idempotent(w, r, "destroy-tier:"+name, func(w http.ResponseWriter) {
			if err := s.coord.Destroy(r.Context(), name); err != nil {
				writeCoordinatorError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req attachRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	granted, info, err := s.coord.Attach(r.Context(), name, req.ClientID)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, attachResponse{Lease: granted, Tier: info})
}

func (s *Server) handleDetach(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req attachRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := s.coord.Detach(r.Context(), name, req.ClientID); err != nil {
		writeCoordinatorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req attachRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	target := strings.TrimSpace(req.ClientID)
	if target == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_client_id", "client id is required")
		return
	}

	// releasing another client's leases is an operator action
	if target != strings.TrimSpace(r.Header.Get(clientIDHeader)) {
		if strings.TrimSpace(s.adminAPIKey) != "" && !requestHasAPIKey(r, s.adminAPIKey) {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid api key")
			return
		}
	}

	s.coord.Disconnect(r.Context(), target)
	w.WriteHeader(http.StatusNoContent)
}
