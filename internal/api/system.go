package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/raphaelgruber/factsheet-go/internal/config"
	"github.com/raphaelgruber/factsheet-go/internal/llm"
	"github.com/raphaelgruber/factsheet-go/internal/metrics"
	"github.com/raphaelgruber/factsheet-go/internal/models"
)

type statsResponse struct {
	metrics.Snapshot
	ActiveTasks  int            `json:"active_tasks"`
	TrackedTasks int            `json:"tracked_tasks"`
	Factsheets   factsheetStats `json:"factsheets"`
}

type factsheetStats struct {
	Total        int   `json:"total"`
	TotalWords   int   `json:"total_words"`
	AverageWords int   `json:"average_words"`
	TotalSize    int64 `json:"total_size"`
	CreatedToday int   `json:"created_today"`
}

type modelsResponse struct {
	Provider  string          `json:"provider"`
	Providers []string        `json:"providers"`
	Models    []llm.ModelInfo `json:"models"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      "factsheet",
		"version":   s.version,
		"docs":      "/api",
		"dashboard": "/dashboard",
		"health":    "/api/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   s.version,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list factsheets", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "Error listing factsheets")
		return
	}

	tasks := s.gen.Registry().List()
	active := 0
	for _, t := range tasks {
		if !t.Status.IsTerminal() {
			active++
		}
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Snapshot:     s.metrics.Snapshot(),
		ActiveTasks:  active,
		TrackedTasks: len(tasks),
		Factsheets:   summarize(list, time.Now()),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	provider := s.provider
	if p := strings.TrimSpace(r.URL.Query().Get("provider")); p != "" {
		provider = config.Provider(strings.ToLower(p))
	}

	providers := llm.Providers()
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = string(p)
	}

	if s.catalog == nil {
		writeError(w, r, http.StatusNotImplemented, "models_unavailable", "Model catalog is not configured")
		return
	}
	list, err := s.catalog.Models(r.Context(), provider)
	if err != nil {
		if errors.Is(err, llm.ErrUnsupportedProvider) {
			writeError(w, r, http.StatusBadRequest, "unsupported_provider", err.Error())
			return
		}
		s.logger.Warn("failed to list models", "provider", provider, "error", err)
		writeError(w, r, http.StatusBadGateway, "upstream_error", "Failed to list models: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, modelsResponse{
		Provider:  string(provider),
		Providers: names,
		Models:    list,
	})
}

// summarize aggregates factsheet metadata for the stats endpoint and the
// dashboard. "Today" is the calendar day of now in now's location.
func summarize(list []models.FactsheetMetadata, now time.Time) factsheetStats {
	st := factsheetStats{Total: len(list)}
	y, m, d := now.Date()
	for _, fs := range list {
		st.TotalWords += fs.WordCount
		st.TotalSize += fs.FileSize
		cy, cm, cd := fs.CreatedAt.In(now.Location()).Date()
		if cy == y && cm == m && cd == d {
			st.CreatedToday++
		}
	}
	if st.Total > 0 {
		st.AverageWords = st.TotalWords / st.Total
	}
	return st
}
