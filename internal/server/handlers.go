package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusFunc produces the body served by [StatusHandler].
type StatusFunc func(ctx context.Context) (any, error)

// StatusHandler serves a liveness probe and a JSON status document.
type StatusHandler struct {
	status StatusFunc
}

// NewStatusHandler creates a handler backed by status.
func NewStatusHandler(status StatusFunc) *StatusHandler {
	return &StatusHandler{status: status}
}

func (h *StatusHandler) Routes() []string {
	return []string{"/healthz", "/status"}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/healthz":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	case "/status":
		body, err := h.status(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error(), "status": body})
			return
		}
		writeJSON(w, http.StatusOK, body)
	default:
		http.NotFound(w, r)
	}
}

// MetricsHandler serves the collectors gathered by g in the Prometheus exposition format.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// NewRouter builds the default router: recovery, request logging, /metrics and the status routes.
func NewRouter(g prometheus.Gatherer, status StatusFunc, mw ...Middleware) *BasicRouter {
	r := NewBasicRouter()
	r.Use(mw...)
	r.Handle(http.MethodGet, "/metrics", MetricsHandler(g))
	r.Handler(NewStatusHandler(status))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
