package api

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VenkatGGG/tiercoord/internal/idempotency"
	"github.com/VenkatGGG/tiercoord/pkg/httpx"
)

const idempotencyKeyHeader = "X-Idempotency-Key"

// idempotent runs handler once per (scope, X-Idempotency-Key) pair and
// replays the recorded response to retries. Requests without the header run
// unconditionally.
func (s *Server) idempotent(w http.ResponseWriter, r *http.Request, scope string, handler func(http.ResponseWriter)) {
	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if key == "" || s.idem == nil {
		handler(w)
		return
	}
	ctx := r.Context()

	result, found, err := s.idem.Lookup(ctx, scope, key)
	if err != nil {
		// dedupe is best effort: a broken store must not block lifecycle ops
		s.logger.Printf("idempotency lookup failed: scope=%s err=%v", scope, err)
		handler(w)
		return
	}
	if found {
		replayResult(w, result)
		return
	}

	owner := uuid.NewString()
	claimed, err := s.idem.Claim(ctx, scope, key, owner, 30*time.Second)
	if err != nil {
		s.logger.Printf("idempotency claim failed: scope=%s err=%v", scope, err)
		handler(w)
		return
	}
	if !claimed {
		httpx.WriteError(w, http.StatusConflict, "request_in_progress", "an identical request is still in flight")
		return
	}

	rec := &responseRecorder{header: make(http.Header)}
	handler(rec)

	saved := idempotency.Result{StatusCode: rec.statusCode(), Body: rec.body.Bytes()}
	if err := s.idem.Save(ctx, scope, key, saved, 0); err != nil {
		s.logger.Printf("idempotency save failed: scope=%s err=%v", scope, err)
	}
	if err := s.idem.Release(ctx, scope, key, owner); err != nil {
		s.logger.Printf("idempotency release failed: scope=%s err=%v", scope, err)
	}

	replayResult(w, saved)
}

func replayResult(w http.ResponseWriter, result idempotency.Result) {
	if len(result.Body) > 0 {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(result.StatusCode)
	_, _ = w.Write(result.Body)
}

// responseRecorder captures a handler's response so it can be stored and
// replayed. Lifecycle responses are small JSON bodies.
type responseRecorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (rec *responseRecorder) Header() http.Header {
	return rec.header
}

func (rec *responseRecorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}
}

func (rec *responseRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.body.Write(b)
}

func (rec *responseRecorder) statusCode() int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}
