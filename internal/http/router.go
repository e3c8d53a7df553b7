package httpapi

import (
	"encoding/json"
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"sketchbot/internal/middleware"
)

// QueueReporter exposes the orchestrator's queue depth read-only. No other
// component may mutate the counter.
type QueueReporter interface {
	QueueDepth() int64
}

// NewRouter builds the status surface: liveness and queue observability.
func NewRouter(queue QueueReporter, logger zerolog.Logger) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
		writeJSON(w, stdhttp.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/queue", func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
		writeJSON(w, stdhttp.StatusOK, map[string]int64{"queue_depth": queue.QueueDepth()})
	})

	return r
}

func writeJSON(w stdhttp.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
