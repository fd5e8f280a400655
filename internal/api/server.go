package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/VenkatGGG/tiercoord/internal/coordinator"
	"github.com/VenkatGGG/tiercoord/internal/idempotency"
	"github.com/VenkatGGG/tiercoord/internal/resource"
	"github.com/VenkatGGG/tiercoord/internal/tier"
	"github.com/VenkatGGG/tiercoord/pkg/httpx"
)

type Server struct {
	coord       *coordinator.Service
	hub         *Hub
	idem        idempotency.Store
	adminAPIKey string
	logger      *log.Logger
}

func NewServer(coord *coordinator.Service, hub *Hub, idem idempotency.Store, adminAPIKey string, logger *log.Logger) *Server {
	if idem == nil {
		idem = idempotency.NewMemory()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		coord:       coord,
		hub:         hub,
		idem:        idem,
		adminAPIKey: adminAPIKey,
		logger:      logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/v1/pools", s.handlePools)
	mux.HandleFunc("/v1/tiers", s.handleTiers)
	mux.HandleFunc("/v1/tiers/", s.handleTierByName)
	mux.HandleFunc("/v1/disconnect", s.handleDisconnect)
	mux.HandleFunc("/v1/stream", s.handleStream)

	return s.withAdminAuth(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeCoordinatorError maps the lifecycle error taxonomy onto the wire.
// Every kind keeps its own code so clients can tell busy apart from gone.
func writeCoordinatorError(w http.ResponseWriter, err error) {
	var busy *tier.BusyError
	switch {
	case errors.As(err, &busy):
		httpx.WriteError(w, http.StatusConflict, "tier_busy", err.Error())
	case errors.Is(err, tier.ErrTierExists):
		httpx.WriteError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, resource.ErrInsufficientCapacity):
		httpx.WriteError(w, http.StatusConflict, "insufficient_resource", err.Error())
	case errors.Is(err, resource.ErrPoolNotFound):
		httpx.WriteError(w, http.StatusNotFound, "pool_not_found", err.Error())
	case errors.Is(err, tier.ErrTierNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, coordinator.ErrNotAttached):
		httpx.WriteError(w, http.StatusConflict, "not_attached", err.Error())
	default:
		httpx.WriteError(w, http.StatusBadRequest, "request_failed", err.Error())
	}
}
