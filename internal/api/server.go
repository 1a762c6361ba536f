// Package api exposes factsheet generation over HTTP: a JSON REST API, a
// websocket task watch and a small HTML dashboard.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/raphaelgruber/factsheet-go/internal/config"
	"github.com/raphaelgruber/factsheet-go/internal/llm"
	"github.com/raphaelgruber/factsheet-go/internal/metrics"
	"github.com/raphaelgruber/factsheet-go/internal/models"
	"github.com/raphaelgruber/factsheet-go/internal/service"
	"github.com/raphaelgruber/factsheet-go/internal/store"
)

// TaskHistory looks up durably recorded tasks. Get returns an error
// wrapping history.ErrNotFound for unknown ids.
type TaskHistory interface {
	Get(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context, limit int) ([]models.Task, error)
}

// ModelCatalog lists the models a provider offers.
type ModelCatalog interface {
	Models(ctx context.Context, provider config.Provider) ([]llm.ModelInfo, error)
}

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Generator *service.Generator
	Store     *store.FileStore
	Catalog   ModelCatalog
	History   TaskHistory // optional
	Metrics   *metrics.Collector
	Logger    *slog.Logger

	DefaultProvider config.Provider
	CORSOrigins     []string
	Version         string
}

// Server holds the HTTP handlers.
type Server struct {
	gen      *service.Generator
	store    *store.FileStore
	catalog  ModelCatalog
	history  TaskHistory
	metrics  *metrics.Collector
	logger   *slog.Logger
	provider config.Provider
	origins  []string
	version  string
	started  time.Time
}

// New creates a Server.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	provider := deps.DefaultProvider
	if provider == "" {
		provider = config.ProviderOpenAI
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		gen:      deps.Generator,
		store:    deps.Store,
		catalog:  deps.Catalog,
		history:  deps.History,
		metrics:  deps.Metrics,
		logger:   logger,
		provider: provider,
		origins:  deps.CORSOrigins,
		version:  version,
		started:  time.Now(),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors(s.origins))

	r.Get("/", s.handleRoot)
	r.Get("/dashboard", s.handleDashboard)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/models", s.handleModels)
		r.Get("/history", s.handleHistory)

		r.Post("/generate", s.handleGenerate)
		r.Post("/generate/bulk", s.handleGenerateBulk)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Get("/{id}", s.handleGetTask)
			r.Get("/{id}/watch", s.handleWatchTask)
		})

		r.Route("/factsheets", func(r chi.Router) {
			r.Get("/", s.handleListFactsheets)
			r.Get("/{name}", s.handleGetFactsheet)
			r.Delete("/{name}", s.handleDeleteFactsheet)
			r.Get("/{name}/download", s.handleDownloadFactsheet)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	return r
}
