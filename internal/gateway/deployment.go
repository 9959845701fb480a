package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/soyeahso/agentforge/internal/deploy"
)

// ChatRequest is the body of the token-authenticated chat endpoint.
type ChatRequest struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
}

// ChatResponse is returned as-is, without the management envelope, so
// external callers get a flat payload.
type ChatResponse struct {
	Response  string    `json:"response"`
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`
}

// withRequestContext appends caller-supplied context to the prompt.
func withRequestContext(prompt string, extra map[string]any) (string, error) {
	if len(extra) == 0 {
		return prompt, nil
	}
	raw, err := json.MarshalIndent(extra, "", "  ")
	if err != nil {
		return "", err
	}
	return prompt + "\n\nAdditional context:\n" + string(raw), nil
}

func (s *Server) handleDeploymentStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.Deployments.Status(chi.URLParam(r, "agentID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondOK(w, "Deployment status retrieved", status)
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	regenerate := false
	if raw := r.URL.Query().Get("regenerate"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.fail(w, r, badRequest("invalid regenerate flag %q", raw))
			return
		}
		regenerate = v
	}

	res, err := s.svc.Deployments.Deploy(r.Context(), agentID, regenerate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// A replaced token must not keep old sessions alive.
	if res.Regenerated {
		s.disconnectAgent(agentID, "regenerated")
	}
	msg := "Agent deployed successfully"
	if res.Regenerated {
		msg = "Agent redeployed with a new token"
	}
	respondOK(w, msg, res)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if err := s.svc.Deployments.Revoke(r.Context(), agentID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.disconnectAgent(agentID, "revoked")
	respondOK(w, "Token revoked successfully", nil)
}

// disconnectAgent tells the agent's WebSocket clients their token is gone,
// then closes them.
func (s *Server) disconnectAgent(agentID, reason string) {
	if s.clients.CountAgent(agentID) == 0 {
		return
	}
	s.clients.Broadcast(agentID, EventTokenRevoked, map[string]string{
		"agent_id": agentID,
		"reason":   reason,
	}, s.eventSeq.Add(1))
	n := s.clients.CloseAgent(agentID)
	s.log.Info().Str("agent_id", agentID).Str("reason", reason).Int("clients", n).Msg("closed agent connections")
}

func (s *Server) handlePostman(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	collection, err := s.svc.Deployments.Postman(agentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+agentID+`_postman_collection.json"`)
	writeJSON(w, http.StatusOK, collection)
}

// handleAgentChat serves external callers holding the agent's API token.
// It never touches chat sessions.
func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		respondError(w, http.StatusTooManyRequests, "too many failed authentication attempts")
		return
	}

	presented, err := bearerToken(r)
	if err != nil {
		s.authLimiter.recordFailure(r.RemoteAddr)
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	agentID := chi.URLParam(r, "agentID")
	a, err := s.svc.Deployments.Authorize(agentID, presented)
	if err != nil {
		if errors.Is(err, deploy.ErrUnauthorized) {
			s.authLimiter.recordFailure(r.RemoteAddr)
			s.log.Warn().Str("remote", r.RemoteAddr).Str("agent_id", agentID).Msg("rejected agent token")
		}
		s.fail(w, r, err)
		return
	}

	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body: %v", err))
		return
	}
	prompt := req.Prompt
	if strings.TrimSpace(prompt) != "" {
		if prompt, err = withRequestContext(prompt, req.Context); err != nil {
			s.fail(w, r, badRequest("Invalid context: %v", err))
			return
		}
	}

	ctx, cancel := agentTurnContext(r)
	defer cancel()
	text, err := s.svc.Orchestrator.Ask(ctx, a, prompt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		Response:  text,
		AgentID:   a.ID,
		Timestamp: time.Now().UTC(),
	})
}
