// Package httpapi assembles the public and admin routes behind the shared
// middleware stack.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ballot/internal/platform/metrics"
	"ballot/internal/platform/middleware"
	"ballot/pkg/platform/httputil"
	"ballot/pkg/platform/middleware/metadata"
	"ballot/pkg/platform/middleware/requesttime"
)

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one backing service.
type HealthCheck func(ctx context.Context) error

// Config lists everything the router mounts. Nil registrars are skipped.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer

	Public []Registrar
	// PublicLimit wraps the Public registrars when set.
	PublicLimit func(http.Handler) http.Handler
	Admin       []Registrar
	// AdminAuth validates admin tokens on the Admin registrars.
	AdminAuth middleware.AdminValidator

	HealthChecks map[string]HealthCheck
}

func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(logger, cfg.Metrics))
	r.Use(middleware.Recovery(logger))

	r.Get("/healthz", healthHandler(cfg.HealthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if cfg.PublicLimit != nil {
			r.Use(cfg.PublicLimit)
		}
		for _, reg := range cfg.Public {
			if reg != nil {
				reg.Register(r)
			}
		}
	})
	if len(cfg.Admin) > 0 && cfg.AdminAuth != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(cfg.AdminAuth, logger))
			for _, reg := range cfg.Admin {
				if reg != nil {
					reg.Register(r)
				}
			}
		})
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(names) > 0 {
			resp.Checks = make(map[string]string, len(names))
		}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
