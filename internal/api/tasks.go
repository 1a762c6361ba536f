package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/factsheet-go/internal/history"
	"github.com/raphaelgruber/factsheet-go/internal/models"
	"github.com/raphaelgruber/factsheet-go/internal/service"
)

const (
	maxBulkURLs     = 50
	watchWriteWait  = 10 * time.Second
	watchPingPeriod = 30 * time.Second
)

type generateResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

type bulkRequest struct {
	URLs     []string `json:"urls"`
	Provider string   `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
}

type bulkResponse struct {
	Tasks    []service.BatchItem `json:"tasks"`
	Accepted int                 `json:"accepted"`
	Rejected int                 `json:"rejected"`
}

type taskListResponse struct {
	Tasks []models.Task `json:"tasks"`
	Total int           `json:"total"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	id, err := s.gen.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "invalid_url", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, generateResponse{
		TaskID:  id,
		Message: "Factsheet generation started",
	})
}

func (s *Server) handleGenerateBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "At least one URL is required")
		return
	}
	if len(req.URLs) > maxBulkURLs {
		writeError(w, r, http.StatusBadRequest, "invalid_request",
			"Too many URLs (max "+strconv.Itoa(maxBulkURLs)+")")
		return
	}

	reqs := make([]models.GenerateRequest, len(req.URLs))
	for i, u := range req.URLs {
		reqs[i] = models.GenerateRequest{URL: u, Provider: req.Provider, Model: req.Model}
	}
	items := s.gen.SubmitBatch(r.Context(), reqs)

	resp := bulkResponse{Tasks: items}
	for _, it := range items {
		if it.Error == "" {
			resp.Accepted++
		} else {
			resp.Rejected++
		}
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.gen.Registry().List()
	if status := models.TaskStatus(r.URL.Query().Get("status")); status != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.Status == status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	writeJSON(w, http.StatusOK, taskListResponse{Tasks: tasks, Total: len(tasks)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := s.gen.Status(id)
	if errors.Is(err, service.ErrTaskNotFound) && s.history != nil {
		// Evicted from memory; the history may still know it.
		recorded, herr := s.history.Get(r.Context(), id)
		if herr == nil {
			writeJSON(w, http.StatusOK, recorded)
			return
		}
		if !errors.Is(herr, history.ErrNotFound) {
			s.logger.Warn("task history lookup failed", "task_id", id, "error", herr)
		}
	}
	if err != nil {
		s.taskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleWatchTask upgrades to a websocket and pushes task snapshots until
// the task is finished.
func (s *Server) handleWatchTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	updates, stop, err := s.gen.Registry().Watch(id)
	if err != nil {
		s.taskError(w, r, err)
		return
	}
	defer stop()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Debug("websocket upgrade failed", "task_id", id, "error", err)
		return
	}
	defer conn.Close()
	// The http.Server read timeout survives the hijack.
	_ = conn.SetReadDeadline(time.Time{})

	// Drain client frames so close messages are processed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(watchPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case task, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task finished"),
					time.Now().Add(watchWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteJSON(task); err != nil {
				s.logger.Debug("websocket write failed", "task_id", id, "error", err)
				return
			}
		}
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusNotImplemented, "history_disabled",
			"Task history is disabled (set FACTSHEET_HISTORY_BACKEND)")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	tasks, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list task history", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "Error reading task history")
		return
	}
	writeJSON(w, http.StatusOK, taskListResponse{Tasks: tasks, Total: len(tasks)})
}

func (s *Server) taskError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrTaskNotFound) {
		writeError(w, r, http.StatusNotFound, "not_found", "Task not found")
		return
	}
	s.logger.Error("task lookup failed", "error", err)
	writeError(w, r, http.StatusInternalServerError, "internal", "Internal error")
}
