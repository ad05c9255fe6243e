package http

import (
	"net/http"

	"github.com/mathhub/mdh-explorer/internal/api/service"
	"github.com/mathhub/mdh-explorer/internal/cache"
	"github.com/mathhub/mdh-explorer/internal/jobs"
	"github.com/mathhub/mdh-explorer/internal/observability"
)

// Backend is the query backend the API reads from.
type Backend = service.Backend

// Deps are the services the handlers use. Jobs, Stats and CacheMetrics
// are optional.
type Deps struct {
	Backend Backend
	Jobs    *jobs.Manager
	Stats   *observability.FilterStats

	// CacheMetrics reports response cache statistics.
	CacheMetrics func() cache.MetricsSnapshot

	// PerPage is the default page size of collection queries.
	PerPage int

	// Service names the service in health responses.
	Service string
}

// Register mounts every API route on mux, wrapped in middleware.
func Register(mux *http.ServeMux, deps Deps, middleware func(http.Handler) http.Handler) {
	if middleware == nil {
		middleware = DefaultMiddleware()
	}
	if deps.PerPage <= 0 {
		deps.PerPage = 20
	}
	if deps.Service == "" {
		deps.Service = "mdh-explorer"
	}

	explorer := service.New(deps.Backend, deps.Stats, deps.PerPage)
	codecs := NewCodecsHandler(explorer)
	filters := NewFiltersHandler(explorer)
	collections := NewCollectionsHandler(explorer)
	stats := NewStatsHandler(deps.Stats, deps.CacheMetrics)

	mux.Handle("GET /v1/codecs", middleware(codecs))
	mux.Handle("POST /v1/filters/clean", middleware(filters))
	mux.Handle("GET /v1/collections", middleware(http.HandlerFunc(collections.List)))
	mux.Handle("GET /v1/collections/{slug}", middleware(collections))
	mux.Handle("GET /v1/stats", middleware(stats))

	if deps.Jobs != nil {
		exports := NewExportsHandler(deps.Jobs, deps.Stats)
		mux.Handle("POST /v1/exports", middleware(http.HandlerFunc(exports.Submit)))
		mux.Handle("GET /v1/exports", middleware(http.HandlerFunc(exports.List)))
		mux.Handle("GET /v1/exports/{id}", middleware(http.HandlerFunc(exports.Get)))
		mux.Handle("DELETE /v1/exports/{id}", middleware(http.HandlerFunc(exports.Cancel)))
		mux.Handle("GET /v1/exports/{id}/download", middleware(http.HandlerFunc(exports.Download)))
	}

	mux.HandleFunc("GET /health", HealthHandler(deps.Service))
}

// HealthHandler returns a health check handler for the given service.
func HealthHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": service})
	}
}
