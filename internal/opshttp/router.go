// Package opshttp serves the operational HTTP surface of watchtreed:
// liveness and Prometheus scraping. It never touches the control socket's
// watch/unwatch/get_events surface (internal/handlers) — the two listen on
// separate addresses so a slow or malicious control-socket client can never
// starve health checks or metrics scraping.
package opshttp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watchtree/watchtreed/internal/handlers"
)

// StatusSource is the subset of Handlers the /healthz endpoint needs,
// narrowed so tests can fake it without constructing a full Manager.
type StatusSource interface {
	Status() handlers.StatusPayload
}

// NewRouter returns a configured chi.Router exposing:
//
//	GET /healthz  – liveness probe with the current watch count and uptime
//	GET /metrics  – Prometheus exposition format
func NewRouter(status StatusSource) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealthz(status))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func handleHealthz(status StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status.Status())
	}
}
