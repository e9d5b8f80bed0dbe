package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"praxus/pkg/task"
)

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List(r.Context())
	if err != nil {
		s.writeError(w, 500, err.Error())
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	s.writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	s.writeJSON(w, 200, t)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		s.writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	result, err := s.tasks.Create(r.Context(), &t)
	if err != nil {
		s.writeError(w, 500, err.Error())
		return
	}
	s.writeJSON(w, 201, result)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		s.writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	t, err := s.tasks.Update(r.Context(), r.PathValue("id"), updates)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	s.writeJSON(w, 200, t)
}

func (s *Server) handleTaskComplete(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	s.writeJSON(w, 200, t)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeTaskError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		s.writeError(w, 404, err.Error())
	case errors.Is(err, task.ErrInvalidUpdate):
		s.writeError(w, 400, err.Error())
	default:
		s.writeError(w, 500, err.Error())
	}
}
