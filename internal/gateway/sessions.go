package gateway

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/hooks"
)

type titleRequest struct {
	Title string `json:"title"`
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type editRequest struct {
	NewContent string `json:"new_content"`
}

// messageIndex parses the {index} route parameter.
func messageIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("invalid message index %q", raw)
	}
	return idx, nil
}

// agentTurnContext bounds a single chat turn.
func agentTurnContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), llmCallTimeout)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if _, err := s.svc.Agents.Get(agentID); err != nil {
		s.fail(w, r, err)
		return
	}
	sessions, err := s.svc.Sessions.List(agentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	respondOK(w, "Chat sessions retrieved successfully", sessions)
}

// handleCreateSession takes the title from the "title" query parameter or a
// JSON body; without either the store assigns the next numbered title.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if _, err := s.svc.Agents.Get(agentID); err != nil {
		s.fail(w, r, err)
		return
	}

	title := r.URL.Query().Get("title")
	if title == "" {
		var req titleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, badRequest("Invalid request body: %v", err))
			return
		}
		title = req.Title
	}

	sess, err := s.svc.Sessions.Create(agentID, strings.TrimSpace(title))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.hooks.Emit(r.Context(), hooks.EventSessionCreated, map[string]any{
		"agent_id":   agentID,
		"session_id": sess.ID,
		"title":      sess.Title,
	})
	respondOK(w, "Chat session created successfully", sess)
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	sessionID := chi.URLParam(r, "sessionID")

	title := r.URL.Query().Get("title")
	if title == "" {
		var req titleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, badRequest("Invalid request body: %v", err))
			return
		}
		title = req.Title
	}

	sess, err := s.svc.Sessions.Rename(agentID, sessionID, title)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondOK(w, "Chat session renamed successfully", sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.svc.Orchestrator.DeleteSession(agentID, sessionID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.hooks.Emit(r.Context(), hooks.EventSessionDeleted, map[string]any{
		"agent_id":   agentID,
		"session_id": sessionID,
	})
	respondOK(w, "Chat session deleted successfully", nil)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.svc.Agents.Get(agentID); err != nil {
		s.fail(w, r, err)
		return
	}
	msgs, err := s.svc.History.List(agentID, sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	respondOK(w, "Chat history retrieved successfully", msgs)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	sessionID := chi.URLParam(r, "sessionID")

	var req promptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body: %v", err))
		return
	}

	ctx, cancel := agentTurnContext(r)
	defer cancel()
	reply, err := s.svc.Orchestrator.Send(ctx, agentID, sessionID, req.Prompt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondOK(w, "Message sent successfully", reply)
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.svc.Orchestrator.ClearMessages(agentID, sessionID); err != nil {
		s.fail(w, r, err)
		return
	}
	respondOK(w, "Chat history cleared successfully", nil)
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	sessionID := chi.URLParam(r, "sessionID")
	idx, err := messageIndex(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body: %v", err))
		return
	}

	ctx, cancel := agentTurnContext(r)
	defer cancel()
	reply, err := s.svc.Orchestrator.EditAndResend(ctx, agentID, sessionID, idx, req.NewContent)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondOK(w, "Message edited and response regenerated", reply)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	sessionID := chi.URLParam(r, "sessionID")
	idx, err := messageIndex(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Orchestrator.DeleteMessage(agentID, sessionID, idx); err != nil {
		s.fail(w, r, err)
		return
	}
	respondOK(w, "Message deleted successfully", nil)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	sessionID := chi.URLParam(r, "sessionID")

	ctx, cancel := agentTurnContext(r)
	defer cancel()
	reply, err := s.svc.Orchestrator.Regenerate(ctx, agentID, sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondOK(w, "Response regenerated successfully", reply)
}
