package api

import (
	"net/http"

	"github.com/VenkatGGG/tiercoord/pkg/httpx"
)

type poolView struct {
	Name           string `json:"name"`
	CapacityBytes  int64  `json:"capacity_bytes"`
	AllocatedBytes int64  `json:"allocated_bytes"`
	FreeBytes      int64  `json:"free_bytes"`
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	pools := s.coord.Pools()
	views := make([]poolView, 0, len(pools))
	for _, pool := range pools {
		views = append(views, poolView{
			Name:           pool.Name,
			CapacityBytes:  pool.CapacityBytes,
			AllocatedBytes: pool.AllocatedBytes,
			FreeBytes:      pool.FreeBytes(),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"pools": views})
}
