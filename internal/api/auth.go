package api

import (
	"net/http"
	"strings"

	"github.com/VenkatGGG/tiercoord/pkg/httpx"
)

// withAdminAuth guards the destructive lifecycle surface. Create and destroy
// require the admin key when one is configured; attach/detach, the data path
// and the stream stay open so ordinary cache clients need no credentials.
// Disconnect is checked in its handler, where self and forced disconnect can
// be told apart.
func (s *Server) withAdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requiresAdminKey(r) {
			next.ServeHTTP(w, r)
			return
		}

		if strings.TrimSpace(s.adminAPIKey) != "" && !requestHasAPIKey(r, s.adminAPIKey) {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requiresAdminKey(r *http.Request) bool {
	path := strings.TrimSpace(r.URL.Path)
	switch {
	case r.Method == http.MethodPost && path == "/v1/tiers":
		return true
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/v1/tiers/"):
		// entry deletes are data path, not lifecycle
		return !strings.Contains(strings.TrimPrefix(path, "/v1/tiers/"), "/")
	default:
		return false
	}
}

func requestHasAPIKey(r *http.Request, expected string) bool {
	want := strings.TrimSpace(expected)
	if want == "" {
		return true
	}
	candidates := []string{
		strings.TrimSpace(r.Header.Get("X-API-Key")),
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		candidates = append(candidates, strings.TrimSpace(auth[7:]))
	}

	for _, candidate := range candidates {
		if candidate == want {
			return true
		}
	}
	return false
}
