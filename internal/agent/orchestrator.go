package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agentforge/internal/chat"
	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/hooks"
	"github.com/soyeahso/agentforge/internal/logging"
	"github.com/soyeahso/agentforge/internal/resource"
	"github.com/soyeahso/agentforge/internal/store"
)

var (
	ErrEmptyPrompt    = errors.New("prompt must not be empty")
	ErrNoUserMessage  = errors.New("no user message found to regenerate from")
	ErrNotUserMessage = errors.New("only user messages can be edited")
)

// ExecutionError reports that the agent could not produce a reply. The
// user message that triggered the turn stays recorded; no reply is.
type ExecutionError struct {
	AgentID   string
	SessionID string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("agent %s: execution failed: %v", e.AgentID, e.Err)
	}
	return fmt.Sprintf("agent %s session %s: execution failed: %v", e.AgentID, e.SessionID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Reply is the assistant's answer to one conversation turn.
type Reply struct {
	Response  string    `json:"response"`
	SessionID string    `json:"chat_session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Orchestrator drives conversation turns: it records the user's message,
// executes the agent and records the reply.
type Orchestrator struct {
	agents   AgentSource
	sessions *chat.SessionStore
	history  *chat.HistoryLog
	renderer ContextRenderer
	exec     Executor
	locks    *store.Locker
	hooks    *hooks.Manager
	log      *logging.Logger
}

// OrchestratorDeps groups the collaborators of an Orchestrator.
type OrchestratorDeps struct {
	Agents   AgentSource
	Sessions *chat.SessionStore
	History  *chat.HistoryLog
	Renderer ContextRenderer
	Executor Executor
	Locks    *store.Locker
	Hooks    *hooks.Manager
}

// NewOrchestrator creates an orchestrator. Hooks may be nil.
func NewOrchestrator(deps OrchestratorDeps, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		agents:   deps.Agents,
		sessions: deps.Sessions,
		history:  deps.History,
		renderer: deps.Renderer,
		exec:     deps.Executor,
		locks:    deps.Locks,
		hooks:    deps.Hooks,
		log:      log.Sub("orchestrator"),
	}
}

// begin resolves the agent and session of a turn and takes the turn lock.
func (o *Orchestrator) begin(agentID, sessionID string) (*domain.Agent, func(), error) {
	a, err := o.agents.Get(agentID)
	if err != nil {
		return nil, nil, err
	}
	if sessionID != domain.DefaultSessionID {
		if _, err := o.sessions.Get(agentID, sessionID); err != nil {
			return nil, nil, err
		}
	}
	return a, o.locks.Lock(store.TurnKey(agentID, sessionID)), nil
}

// Send records prompt as a user message, names the session after it when
// the session still has a default title, and records the agent's reply.
func (o *Orchestrator) Send(ctx context.Context, agentID, sessionID, prompt string) (*Reply, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	a, unlock, err := o.begin(agentID, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := o.history.Append(agentID, sessionID, domain.RoleUser, prompt); err != nil {
		return nil, fmt.Errorf("recording user message: %w", err)
	}
	o.hooks.EmitAsync(ctx, hooks.EventMessageReceived, map[string]any{
		"agent_id":   agentID,
		"session_id": sessionID,
		"content":    prompt,
	})

	if renamed, err := o.sessions.AutoTitle(agentID, sessionID, prompt); err != nil {
		o.log.Warn().Err(err).Str("agent_id", agentID).Str("session_id", sessionID).Msg("auto title failed")
	} else if renamed {
		o.log.Debug().Str("agent_id", agentID).Str("session_id", sessionID).Msg("session titled from first message")
	}

	return o.reply(ctx, a, sessionID, prompt)
}

// EditAndResend replaces user message idx with content, drops every later
// message and records a fresh reply to the edited message.
func (o *Orchestrator) EditAndResend(ctx context.Context, agentID, sessionID string, idx int, content string) (*Reply, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyPrompt
	}
	a, unlock, err := o.begin(agentID, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	msgs, err := o.history.List(agentID, sessionID)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(msgs) {
		return nil, chat.ErrIndexOutOfRange
	}
	if msgs[idx].Role != domain.RoleUser {
		return nil, ErrNotUserMessage
	}

	if _, err := o.history.EditAt(agentID, sessionID, idx, content); err != nil {
		return nil, fmt.Errorf("editing message %d: %w", idx, err)
	}
	if _, err := o.history.TruncateAfter(agentID, sessionID, idx); err != nil {
		return nil, fmt.Errorf("truncating after message %d: %w", idx, err)
	}

	o.log.Info().Str("agent_id", agentID).Str("session_id", sessionID).Int("index", idx).Msg("message edited")
	return o.reply(ctx, a, sessionID, content)
}

// Regenerate drops everything after the last user message and records a
// new reply to it. A history without user messages is left untouched.
func (o *Orchestrator) Regenerate(ctx context.Context, agentID, sessionID string) (*Reply, error) {
	a, unlock, err := o.begin(agentID, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	msgs, err := o.history.List(agentID, sessionID)
	if err != nil {
		return nil, err
	}
	last := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleUser {
			last = i
			break
		}
	}
	if last < 0 {
		return nil, ErrNoUserMessage
	}

	if _, err := o.history.TruncateAfter(agentID, sessionID, last); err != nil {
		return nil, fmt.Errorf("truncating after message %d: %w", last, err)
	}
	return o.reply(ctx, a, sessionID, msgs[last].Content)
}

// DeleteMessage removes message idx outside of any running turn.
func (o *Orchestrator) DeleteMessage(agentID, sessionID string, idx int) error {
	_, unlock, err := o.begin(agentID, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	return o.history.DeleteAt(agentID, sessionID, idx)
}

// ClearMessages empties the session history outside of any running turn.
func (o *Orchestrator) ClearMessages(agentID, sessionID string) error {
	_, unlock, err := o.begin(agentID, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	return o.history.Clear(agentID, sessionID)
}

// DeleteSession removes a session and its history once any running turn
// on it has finished, so a late reply cannot recreate the history.
func (o *Orchestrator) DeleteSession(agentID, sessionID string) error {
	unlock := o.locks.Lock(store.TurnKey(agentID, sessionID))
	defer unlock()
	return o.sessions.Delete(agentID, sessionID)
}

// Ask executes prompt with the agent's resource context without touching
// any session. It serves the token-authenticated chat endpoint.
func (o *Orchestrator) Ask(ctx context.Context, a *domain.Agent, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	text, err := o.execute(ctx, a, prompt)
	if err != nil {
		o.failed(ctx, a.ID, "", err)
		return "", &ExecutionError{AgentID: a.ID, Err: err}
	}
	return text, nil
}

func (o *Orchestrator) reply(ctx context.Context, a *domain.Agent, sessionID, prompt string) (*Reply, error) {
	text, err := o.execute(ctx, a, prompt)
	if err != nil {
		o.failed(ctx, a.ID, sessionID, err)
		return nil, &ExecutionError{AgentID: a.ID, SessionID: sessionID, Err: err}
	}

	// The session may have been deleted while the agent was running.
	if sessionID != domain.DefaultSessionID {
		if _, err := o.sessions.Get(a.ID, sessionID); err != nil {
			o.log.Warn().Err(err).Str("agent_id", a.ID).Str("session_id", sessionID).Msg("dropping reply for missing session")
			return nil, err
		}
	}

	msg, err := o.history.Append(a.ID, sessionID, domain.RoleAssistant, text)
	if err != nil {
		return nil, fmt.Errorf("recording reply: %w", err)
	}
	o.hooks.EmitAsync(ctx, hooks.EventReplyGenerated, map[string]any{
		"agent_id":   a.ID,
		"session_id": sessionID,
		"content":    text,
	})
	return &Reply{Response: text, SessionID: sessionID, Timestamp: msg.Timestamp}, nil
}

func (o *Orchestrator) execute(ctx context.Context, a *domain.Agent, prompt string) (string, error) {
	var contextText string
	if len(a.Resources) > 0 && o.renderer != nil {
		contextText = o.renderer.Render(a)
	}
	return o.exec.Execute(ctx, a, resource.ComposePrompt(contextText, prompt))
}

func (o *Orchestrator) failed(ctx context.Context, agentID, sessionID string, err error) {
	o.log.Error().Err(err).Str("agent_id", agentID).Str("session_id", sessionID).Msg("agent execution failed")
	o.hooks.EmitAsync(ctx, hooks.EventExecutionFailed, map[string]any{
		"agent_id":   agentID,
		"session_id": sessionID,
		"error":      err.Error(),
	})
}
