// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the exporter's two HTTP routes — /metrics and
// /health — using the teacher's go-chi routing stack, trimmed to the
// surface this exporter actually needs.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/logging"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

// HealthSource reports whether at least one collector has succeeded
// recently enough to consider the exporter healthy.
type HealthSource interface {
	Healthy(within time.Duration) bool
}

// Router builds the exporter's HTTP surface.
type Router struct {
	reg            *metrics.Registry
	health         HealthSource
	unhealthyAfter time.Duration
	pathPrefix     string
	healthEnabled  bool
}

// NewRouter constructs the router. pathPrefix, if non-empty, is
// mounted ahead of both routes (e.g. "/meraki" serves
// "/meraki/metrics" and "/meraki/health"). healthEnabled gates whether
// /health is mounted at all, per ServerConfig.EnableHealthCheck.
func NewRouter(reg *metrics.Registry, health HealthSource, unhealthyAfter time.Duration, pathPrefix string, healthEnabled bool) *Router {
	return &Router{
		reg:            reg,
		health:         health,
		unhealthyAfter: unhealthyAfter,
		pathPrefix:     strings.TrimSuffix(pathPrefix, "/"),
		healthEnabled:  healthEnabled,
	}
}

// Handler builds the chi mux serving /metrics and /health.
func (router *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogging())

	mount := func(rt chi.Router) {
		rt.Handle("/metrics", promhttp.HandlerFor(router.reg.Gatherer(), promhttp.HandlerOpts{}))
		if router.healthEnabled {
			rt.Get("/health", router.handleHealth)
		}
	}

	if router.pathPrefix == "" {
		mount(r)
	} else {
		r.Route(router.pathPrefix, mount)
	}

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}

func (router *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if router.health == nil || router.health.Healthy(router.unhealthyAfter) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
}

// requestLogging adapts the teacher's structured-logging convention to
// a small chi middleware, since the full request-ID/CORS/rate-limit
// middleware stack it used has no counterpart for a two-route exporter.
func requestLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logging.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
