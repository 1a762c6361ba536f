package api

import (
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/raphaelgruber/factsheet-go/internal/llm"
	"github.com/raphaelgruber/factsheet-go/internal/models"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"kb": formatKB,
	"date": func(t time.Time) string {
		return t.Local().Format("2006-01-02 15:04")
	},
}).Parse(dashboardHTML))

// recentLimit is how many factsheets the dashboard lists.
const recentLimit = 5

type dashboardData struct {
	Version   string
	Stats     factsheetStats
	Recent    []models.FactsheetMetadata
	Provider  string
	Providers []string
	Models    []llm.ModelInfo
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list factsheets", "error", err)
		http.Error(w, "Error listing factsheets", http.StatusInternalServerError)
		return
	}

	data := dashboardData{
		Version:  s.version,
		Stats:    summarize(list, time.Now()),
		Recent:   list[:min(len(list), recentLimit)],
		Provider: string(s.provider),
	}
	for _, p := range llm.Providers() {
		data.Providers = append(data.Providers, string(p))
	}
	if s.catalog != nil {
		// Model list is a convenience; the form still works without it.
		if ms, err := s.catalog.Models(r.Context(), s.provider); err == nil {
			data.Models = ms
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render dashboard", "error", err)
	}
}

func formatKB(n int64) string {
	return fmt.Sprintf("%.1f KB", float64(n)/1024)
}
