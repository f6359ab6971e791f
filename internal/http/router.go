// Package httpapi assembles the query API router.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tlwatch/internal/api/handler"
	"tlwatch/internal/platform/metrics"
	"tlwatch/internal/platform/middleware"
)

// NewRouter mounts the API and /metrics. gatherer is what /metrics exposes.
func NewRouter(h *handler.Handler, logger *slog.Logger, m *metrics.HTTP, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Observe(logger, m))
	r.Use(middleware.Recover(logger))

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	h.Register(r)
	return r
}
