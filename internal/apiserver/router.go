package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shellforge/execd/internal/dispatch"
	"github.com/shellforge/execd/internal/environment"
	"github.com/shellforge/execd/internal/stats"
)

// RouterConfig holds every dependency the router needs to wire its
// handlers, gathered into one struct so cmd/execd's main only has to build
// one value.
type RouterConfig struct {
	Dispatcher   *dispatch.Dispatcher
	Environments *environment.Manager
	Stats        *stats.Aggregator
	Logger       *zap.Logger
}

// NewRouter builds the Chi router. Routes are mounted directly at the
// root — no /api/v1 prefix, no Authenticate/RequireRole layer, since
// authentication is out of scope for this service.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	executeHandler := NewExecuteHandler(cfg.Dispatcher, cfg.Logger)
	statsHandler := NewStatsHandler(cfg.Stats, cfg.Logger)
	environmentHandler := NewEnvironmentHandler(cfg.Environments, cfg.Logger)

	r.Get("/healthz", Health)
	r.Post("/v1/execute", executeHandler.Execute)
	r.Get("/v1/stats/execution", statsHandler.Snapshot)
	r.Post("/v1/environment", environmentHandler.Create)

	return r
}
