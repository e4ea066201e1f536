// Package syncdaemon implements the optional localhost HTTP service that
// batches file-change sync jobs and lazy per-thread summarisation behind a
// retry queue. The CLI always functions without it; the daemon only saves
// latency by keeping a queue warm instead of dialing out per request.
package syncdaemon

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vaultlabs/vlt/internal/summarizer"
)

var errSummarizerUnavailable = errors.New("summarizer not configured")

// Server exposes the sync daemon's HTTP surface.
type Server struct {
	queue       Queue
	summarizer  *summarizer.Summarizer
	mux         *http.ServeMux
}

// NewServer wires a Server around an already-started Queue and an optional
// Summarizer (nil disables POST /summarize/{thread_id}).
func NewServer(queue Queue, s *summarizer.Summarizer) *Server {
	srv := &Server{queue: queue, summarizer: s, mux: http.NewServeMux()}
	srv.registerRoutes()
	return srv
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /sync/enqueue", s.handleEnqueue)
	s.mux.HandleFunc("POST /sync/retry", s.handleRetry)
	s.mux.HandleFunc("GET /sync/status", s.handleStatus)
	s.mux.HandleFunc("POST /summarize/{thread_id}", s.handleSummarize)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type enqueueRequest struct {
	Project string `json:"project"`
	Path    string `json:"path"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	job := Job{ID: req.Project + ":" + req.Path, Project: req.Project, Path: req.Path}
	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"enqueued": job.Path})
}

// handleRetry re-enqueues whatever the caller identifies as failed; the
// retry queue itself already retries in-flight, so this endpoint's job is
// to requeue work the caller tracked as lost (e.g. after a daemon
// restart), not to second-guess the queue's own backoff.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	job := Job{ID: req.Project + ":" + req.Path, Project: req.Project, Path: req.Path}
	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"retried": job.Path})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.queue.Status())
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if s.summarizer == nil {
		respondError(w, http.StatusServiceUnavailable, errSummarizerUnavailable)
		return
	}
	threadID := r.PathValue("thread_id")
	summary, err := s.summarizer.GenerateSummary(r.Context(), threadID, false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"thread_id": threadID, "summary": summary})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}
