package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		s.writeError(w, 503, "assistant not configured")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, 400, "message is required")
		return
	}
	reply, err := s.chat.Reply(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.writeError(w, 500, err.Error())
		return
	}
	s.writeJSON(w, 200, reply)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		s.writeError(w, 503, "assistant not configured")
		return
	}
	msgs, err := s.chat.History(r.Context(), r.PathValue("session"), queryInt(r, "limit", 50))
	if err != nil {
		s.writeError(w, 500, err.Error())
		return
	}
	s.writeJSON(w, 200, msgs)
}
