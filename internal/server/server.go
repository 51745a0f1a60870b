// Package server exposes the orchestration engine over HTTP: the
// workflow and task operations, the dashboard stats endpoint, and a
// server-sent-events stream of broadcast events.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/ShunsukeHayashi/workflowd/internal/broadcast"
	"github.com/ShunsukeHayashi/workflowd/internal/engine"
	"github.com/ShunsukeHayashi/workflowd/internal/journal"
)

// EventLog is the slice of the journal the dashboard needs.
type EventLog interface {
	Recent(n int) ([]journal.Entry, error)
}

// Config bundles the server's dependencies.
type Config struct {
	Engine      *engine.Engine
	Broadcaster *broadcast.Broadcaster
	// EventLog feeds the dashboard's recent-activity list. Optional; nil
	// leaves recent_events empty.
	EventLog EventLog
	// RecentLimit caps how many journaled events the dashboard returns.
	RecentLimit int
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine      *engine.Engine
	broadcaster *broadcast.Broadcaster
	eventLog    EventLog
	recentLimit atomic.Int64
	mux         *http.ServeMux
}

// New creates a Server and registers its routes.
func New(cfg Config) *Server {
	s := &Server{
		engine:      cfg.Engine,
		broadcaster: cfg.Broadcaster,
		eventLog:    cfg.EventLog,
		mux:         http.NewServeMux(),
	}
	s.SetRecentLimit(cfg.RecentLimit)

	s.mux.HandleFunc("POST /api/workflows", s.handleCreateWorkflow)
	s.mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	s.mux.HandleFunc("GET /api/workflows/{id}", s.handleGetWorkflow)
	s.mux.HandleFunc("POST /api/workflows/{id}/start", s.handleStartWorkflow)
	s.mux.HandleFunc("POST /api/tasks/{id}/update", s.handleUpdateTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/decompose", s.handleDecomposeTask)
	s.mux.HandleFunc("GET /api/dashboard/stats", s.handleDashboardStats)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// SetRecentLimit adjusts the dashboard's recent-events cap. Safe to call
// while serving; config hot reload uses it. Non-positive values reset to
// the default of 50.
func (s *Server) SetRecentLimit(n int) {
	if n <= 0 {
		n = 50
	}
	s.recentLimit.Store(int64(n))
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] encode response: %v", err)
	}
}

// writeError writes an error response in the {"detail": ...} shape.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
