package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/raphaelgruber/factsheet-go/internal/models"
	"github.com/raphaelgruber/factsheet-go/internal/store"
)

type factsheetListResponse struct {
	Factsheets []models.FactsheetMetadata `json:"factsheets"`
	Total      int                        `json:"total"`
}

func (s *Server) handleListFactsheets(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list factsheets", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "Error listing factsheets")
		return
	}
	writeJSON(w, http.StatusOK, factsheetListResponse{Factsheets: list, Total: len(list)})
}

func (s *Server) handleGetFactsheet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	fs, err := s.store.Read(r.Context(), name)
	if err != nil {
		s.factsheetError(w, r, name, err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

func (s *Server) handleDeleteFactsheet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.store.Delete(r.Context(), name); err != nil {
		s.factsheetError(w, r, name, err)
		return
	}
	s.logger.Info("deleted factsheet", "filename", name)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Factsheet " + name + " deleted successfully",
	})
}

func (s *Server) handleDownloadFactsheet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	fs, err := s.store.Read(r.Context(), name)
	if err != nil {
		s.factsheetError(w, r, name, err)
		return
	}
	path, err := s.store.Path(name)
	if err != nil {
		s.factsheetError(w, r, name, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(fs.Metadata.Filename))
	http.ServeFile(w, r, path)
}

func (s *Server) factsheetError(w http.ResponseWriter, r *http.Request, name string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidName):
		writeError(w, r, http.StatusNotFound, "not_found", "Factsheet not found")
	default:
		s.logger.Error("factsheet operation failed", "filename", name, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "Error reading factsheet")
	}
}
