package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"praxus/pkg/logx"
	"praxus/pkg/schedule"
)

func (s *Server) handlePlanning(w http.ResponseWriter, r *http.Request) {
	var req schedule.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	resp := s.planner.Handle(r.Context(), req)
	if resp.Err != nil {
		s.log.Warn("planning failed",
			logx.String("action", req.Action),
			logx.String("kind", schedule.ErrorKind(resp.Err)),
			logx.Err(resp.Err),
		)
	}
	s.writeJSON(w, planningStatus(resp.Err), resp)
}

func planningStatus(err error) int {
	switch schedule.ErrorKind(err) {
	case "":
		return 200
	case "input_shape", "unknown_action":
		return 400
	default:
		return 500
	}
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.planner.Schedule(r.Context())
	if err != nil {
		s.writeError(w, 500, err.Error())
		return
	}
	s.writeJSON(w, 200, schedule.Response{Schedule: blocks})
}

// handleScheduleStream sends the stored schedule, then every newly
// committed one, as server-sent events.
func (s *Server) handleScheduleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, 500, "streaming not supported")
		return
	}
	if s.bus == nil {
		s.writeError(w, 503, "schedule updates not available")
		return
	}

	ctx := r.Context()
	updates := s.bus.Subscribe()
	defer s.bus.Unsubscribe(updates)

	current, err := s.planner.Schedule(ctx)
	if err != nil {
		s.writeError(w, 500, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	s.writeEvent(w, schedule.Update{Schedule: current, GeneratedAt: time.Now()})
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			s.writeEvent(w, u)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, u schedule.Update) {
	if u.Schedule == nil {
		u.Schedule = []schedule.Block{}
	}
	b, err := json.Marshal(u)
	if err != nil {
		s.log.Warn("encode schedule event", logx.Err(err))
		return
	}
	fmt.Fprintf(w, "event: schedule\ndata: %s\n\n", b)
}
