// Package api serves the praxus HTTP API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"praxus/pkg/assistant"
	"praxus/pkg/logx"
	"praxus/pkg/schedule"
	"praxus/pkg/task"
)

// Chatter answers chat messages and returns session history.
type Chatter interface {
	Reply(ctx context.Context, sessionID, message string) (*assistant.Reply, error)
	History(ctx context.Context, sessionID string, limit int) ([]assistant.Message, error)
}

// Deps are the services the API is built on. Chat may be nil, in which case
// the chat routes answer 503.
type Deps struct {
	Tasks    task.Store
	Schedule schedule.Store
	Planner  *schedule.Planner
	Bus      *schedule.Bus
	Chat     Chatter
	Log      logx.Logger
}

// Server is the HTTP API server.
type Server struct {
	tasks     task.Store
	blocks    schedule.Store
	planner   *schedule.Planner
	bus       *schedule.Bus
	chat      Chatter
	log       logx.Logger
	started   time.Time
	mux       *http.ServeMux
	keepAlive time.Duration
}

// New creates a new Server.
func New(d Deps) *Server {
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		tasks:     d.Tasks,
		blocks:    d.Schedule,
		planner:   d.Planner,
		bus:       d.Bus,
		chat:      d.Chat,
		log:       log.With(logx.String("component", "api")),
		started:   time.Now(),
		mux:       http.NewServeMux(),
		keepAlive: 15 * time.Second,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(sw, r)
	s.log.Debug("request",
		logx.String("method", r.Method),
		logx.String("path", r.URL.Path),
		logx.Int("status", sw.status),
		logx.Duration("took", time.Since(start)),
	)
}

func (s *Server) routes() {
	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("PATCH /api/tasks/{id}", s.handleTaskUpdate)
	s.mux.HandleFunc("POST /api/tasks/{id}/complete", s.handleTaskComplete)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)

	// Chat
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/chat/{session}", s.handleChatHistory)

	// Planning
	s.mux.HandleFunc("POST /api/planning", s.handlePlanning)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/schedule/stream", s.handleScheduleStream)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	taskCount, _ := s.tasks.Count(ctx)
	pendingTasks, _ := s.tasks.PendingCount(ctx)
	blockCount, _ := s.blocks.Count(ctx)

	s.writeJSON(w, 200, map[string]any{
		"tasks":         taskCount,
		"pending_tasks": pendingTasks,
		"blocks":        blockCount,
		"uptime":        time.Since(s.started).Truncate(time.Second).String(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write json", logx.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
