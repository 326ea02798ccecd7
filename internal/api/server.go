// Package api exposes the HTTP interface for the crawl engine.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
	"github.com/imeepos/crawl-engine/internal/dispatcher"
	"github.com/imeepos/crawl-engine/internal/metrics"
)

// Server wires HTTP handlers to the dispatcher and the renderer.
type Server struct {
	router     chi.Router
	dispatcher *dispatcher.Dispatcher
	renderer   crawler.Renderer
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(dispatcher *dispatcher.Dispatcher, renderer crawler.Renderer, logger *zap.Logger) *Server {
	s := &Server{
		dispatcher: dispatcher,
		renderer:   renderer,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/render/health", s.renderHealth)
		r.Post("/tasks", s.submitTask)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// renderHealthResponse is the operational probe payload for the
// rendering subsystem.
type renderHealthResponse struct {
	Status   string  `json:"status"`
	Enabled  bool    `json:"enabled"`
	FinalURL *string `json:"finalUrl"`
	Error    *string `json:"error"`
}

func (s *Server) renderHealth(w http.ResponseWriter, r *http.Request) {
	health := s.renderer.Health(r.Context())

	resp := renderHealthResponse{Status: "ok", Enabled: health.Enabled}
	if !health.OK {
		resp.Status = "error"
	}
	if health.FinalURL != "" {
		resp.FinalURL = &health.FinalURL
	}
	if health.Error != "" {
		resp.Error = &health.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	var desc crawler.TaskDescriptor
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if desc.TaskID <= 0 {
		writeError(w, http.StatusBadRequest, "taskId must be a positive number")
		return
	}
	if err := s.dispatcher.Enqueue(r.Context(), desc); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"taskId": desc.TaskID, "status": "queued"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
