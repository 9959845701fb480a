package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/agentforge/internal/deploy"
	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/version"
)

const (
	maxWSPayload     = 4 * 1024 * 1024
	handshakeTimeout = 10 * time.Second
)

// handleWebSocket upgrades a connection for a deployed agent. The agent's
// API token is presented either in the Authorization header of the upgrade
// request or in the connect frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Rate-limit connection attempts per IP
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited, too many failed auth attempts")
		respondError(w, http.StatusTooManyRequests, "too many failed authentication attempts")
		return
	}

	agentID := chi.URLParam(r, "agentID")
	headerToken, _ := bearerToken(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxWSPayload)

	s.log.Debug().Str("remote", r.RemoteAddr).Str("agent_id", agentID).Msg("new websocket connection")

	client, err := s.handshake(conn, agentID, headerToken)
	if err != nil {
		s.log.Warn().Err(err).Str("agent_id", agentID).Msg("handshake failed")
		s.authLimiter.recordFailure(r.RemoteAddr)
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.readLoop(r.Context(), client)
}

// handshakeError maps an authorization failure onto a frame error code.
func handshakeError(err error) (string, string) {
	switch {
	case errors.Is(err, deploy.ErrUnauthorized):
		return "unauthorized", "Invalid or expired token"
	case errors.Is(err, deploy.ErrForbidden):
		return "forbidden", "Token does not match agent ID"
	case errors.Is(err, domain.ErrAgentNotFound):
		return "not_found", "Agent not found"
	case errors.Is(err, deploy.ErrNotDeployed):
		return "not_deployed", "Agent is not deployed"
	default:
		return "internal", "authorization failed"
	}
}

func (s *Server) handshake(conn *websocket.Conn, agentID, headerToken string) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	challenge, err := NewEvent(EventConnectChallenge, map[string]any{
		"nonce": uuid.New().String(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("creating challenge: %w", err)
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading connect: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return nil, fmt.Errorf("parsing connect frame: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		sendErrorAndClose(conn, frame.ID, "protocol_error", "expected connect request")
		return nil, fmt.Errorf("expected connect request, got type=%s method=%s", frame.Type, frame.Method)
	}

	var params ConnectParams
	if len(frame.Params) > 0 {
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			sendErrorAndClose(conn, frame.ID, "invalid_params", "invalid connect params")
			return nil, fmt.Errorf("parsing connect params: %w", err)
		}
	}
	if params.MaxProtocol != 0 && params.MaxProtocol < ProtocolVersion ||
		params.MinProtocol > ProtocolVersion {
		sendErrorAndClose(conn, frame.ID, "protocol_mismatch",
			fmt.Sprintf("server speaks protocol %d", ProtocolVersion))
		return nil, fmt.Errorf("protocol mismatch: client %d-%d", params.MinProtocol, params.MaxProtocol)
	}

	presented := headerToken
	if params.Auth != nil && params.Auth.Token != "" {
		presented = params.Auth.Token
	}
	if presented == "" {
		sendErrorAndClose(conn, frame.ID, "unauthorized", errMissingAuth.Error())
		return nil, errMissingAuth
	}
	a, err := s.svc.Deployments.Authorize(agentID, presented)
	if err != nil {
		code, reason := handshakeError(err)
		sendErrorAndClose(conn, frame.ID, code, reason)
		return nil, fmt.Errorf("auth failed: %w", err)
	}

	conn.SetReadDeadline(time.Time{})

	client := NewClient(conn, a.ID, params.Client, s.log.Sub("ws"))
	client.token = presented

	hello := HelloOK{
		Protocol: ProtocolVersion,
		Server: ServerInfo{
			Version: s.version,
			Commit:  version.Commit,
			ConnID:  client.ConnID,
		},
		Agent: AgentInfo{ID: a.ID, Name: a.Name},
		Features: Features{
			Methods: s.Methods(),
			Events:  []string{EventConnectChallenge, EventTokenRevoked},
		},
		Policy: ServerPolicy{
			MaxPayload:     maxWSPayload,
			TickIntervalMs: 30000,
		},
	}
	resp, err := NewResponse(frame.ID, hello)
	if err != nil {
		return nil, fmt.Errorf("creating hello response: %w", err)
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("agent_id", a.ID).
		Str("clientId", params.Client.ID).
		Str("clientVersion", params.Client.Version).
		Msg("client authenticated")

	return client, nil
}

func (s *Server) readLoop(ctx context.Context, client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read loop ended")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}

		s.dispatch(ctx, client, frame)
	}
}

func (s *Server) dispatch(ctx context.Context, client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    "method_not_found",
			Message: "unknown method: " + frame.Method,
		})
		return
	}

	handler(&RequestContext{
		Ctx:    ctx,
		Client: client,
		Frame:  frame,
		Server: s,
	})
}

func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{
		Code:    code,
		Message: message,
	}))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, message))
}

func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("deployment.status", s.rpcDeploymentStatus)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.CountAgent(rc.Client.AgentID),
		Uptime:  s.Uptime().Truncate(time.Second).String(),
	})
}

func (s *Server) rpcChatSend(rc *RequestContext) {
	var p ChatRequest
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Prompt == "" {
		rc.RespondError("invalid_params", "prompt is required")
		return
	}
	prompt, err := withRequestContext(p.Prompt, p.Context)
	if err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	a, err := s.svc.Deployments.Authorize(rc.Client.AgentID, rc.Client.token)
	if err != nil {
		code, reason := handshakeError(err)
		rc.RespondError(code, reason)
		return
	}

	ctx, cancel := context.WithTimeout(rc.Ctx, llmCallTimeout)
	defer cancel()

	text, err := s.svc.Orchestrator.Ask(ctx, a, prompt)
	if err != nil {
		_, msg := errorStatus(err)
		rc.RespondError("agent_error", msg)
		return
	}
	rc.Respond(ChatResponse{
		Response:  text,
		AgentID:   a.ID,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) rpcDeploymentStatus(rc *RequestContext) {
	status, err := s.svc.Deployments.Status(rc.Client.AgentID)
	if err != nil {
		_, msg := errorStatus(err)
		rc.RespondError("internal", msg)
		return
	}
	rc.Respond(status)
}
