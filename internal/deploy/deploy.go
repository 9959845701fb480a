// Package deploy exposes agents through token-authenticated chat
// endpoints and reports on their deployment state.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/hooks"
	"github.com/soyeahso/agentforge/internal/logging"
	"github.com/soyeahso/agentforge/internal/token"
)

var (
	ErrNotDeployed  = errors.New("agent is not deployed")
	ErrUnauthorized = errors.New("invalid or expired token")
	ErrForbidden    = errors.New("token does not match agent")
)

// AgentStore is the part of the agent repository deployments need.
type AgentStore interface {
	Get(agentID string) (*domain.Agent, error)
	SetDeployment(agentID, token, endpoint string) (*domain.Agent, error)
}

// Manager issues deployment credentials and answers status queries.
type Manager struct {
	agents  AgentStore
	tokens  *token.Store
	baseURL string
	hooks   *hooks.Manager
	log     *logging.Logger
	now     func() time.Time
}

// NewManager creates a deployment manager. Endpoints are built on
// baseURL. Hooks may be nil.
func NewManager(agents AgentStore, tokens *token.Store, baseURL string, hm *hooks.Manager, log *logging.Logger) *Manager {
	return &Manager{
		agents:  agents,
		tokens:  tokens,
		baseURL: strings.TrimRight(baseURL, "/"),
		hooks:   hm,
		log:     log.Sub("deploy"),
		now:     time.Now,
	}
}

// Endpoint returns the chat endpoint URL of an agent.
func (m *Manager) Endpoint(agentID string) string {
	return m.baseURL + "/api/v1/agents/" + agentID + "/chat"
}

// BaseURL returns the base the endpoints are built on.
func (m *Manager) BaseURL() string { return m.baseURL }

// Deploy makes the agent reachable on its chat endpoint. A deployed agent
// whose token is still usable keeps its credential unless regenerate is
// set; otherwise a fresh token replaces the old one.
func (m *Manager) Deploy(ctx context.Context, agentID string, regenerate bool) (*domain.DeploymentResult, error) {
	a, err := m.agents.Get(agentID)
	if err != nil {
		return nil, err
	}

	if a.IsDeployed && !regenerate {
		rec, err := m.tokens.Get(agentID)
		switch {
		case err == nil && rec.Usable(m.now()):
			return &domain.DeploymentResult{
				AgentID:   agentID,
				Token:     rec.Token,
				Endpoint:  a.APIEndpoint,
				ExpiresAt: rec.ExpiresAt,
			}, nil
		case err != nil && !errors.Is(err, token.ErrNoRecord):
			m.log.Warn().Err(err).Str("agent_id", agentID).Msg("unreadable token record, reissuing")
		}
		regenerate = true
	}

	rec, err := m.tokens.Issue(agentID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	endpoint := m.Endpoint(agentID)
	if _, err := m.agents.SetDeployment(agentID, rec.Token, endpoint); err != nil {
		return nil, fmt.Errorf("recording deployment: %w", err)
	}

	payload := map[string]any{
		"agent_id":    agentID,
		"endpoint":    endpoint,
		"regenerated": regenerate,
		"expires_at":  nil,
	}
	if rec.ExpiresAt != nil {
		payload["expires_at"] = rec.ExpiresAt.Format(time.RFC3339)
	}
	m.log.Info().
		Str("agent_id", agentID).
		Bool("regenerated", regenerate).
		Interface("expires_at", payload["expires_at"]).
		Msg("agent deployed")
	m.hooks.EmitAsync(ctx, hooks.EventAgentDeployed, payload)

	return &domain.DeploymentResult{
		AgentID:     agentID,
		Token:       rec.Token,
		Endpoint:    endpoint,
		ExpiresAt:   rec.ExpiresAt,
		Regenerated: regenerate,
	}, nil
}

// Status reports the agent's deployment without changing it.
func (m *Manager) Status(agentID string) (*domain.DeploymentStatus, error) {
	a, err := m.agents.Get(agentID)
	if err != nil {
		return nil, err
	}
	if !a.IsDeployed {
		return &domain.DeploymentStatus{Message: "Agent is not deployed"}, nil
	}

	st := &domain.DeploymentStatus{
		Deployed: true,
		Endpoint: a.APIEndpoint,
	}
	rec, err := m.tokens.Get(agentID)
	switch {
	case err == nil:
		st.Token = rec
		st.Expired = !rec.Usable(m.now())
	case errors.Is(err, token.ErrNoRecord):
		st.Expired = true
	default:
		m.log.Warn().Err(err).Str("agent_id", agentID).Msg("unreadable token record")
		st.Expired = true
	}
	st.NeedsRegeneration = st.Expired
	switch {
	case st.Token != nil && !st.Token.IsActive:
		st.Message = "Token has been revoked"
	case st.Expired:
		st.Message = "Token has expired"
	}
	return st, nil
}

// Revoke deactivates the agent's token. The agent stays marked as
// deployed; redeploying issues a new token.
func (m *Manager) Revoke(ctx context.Context, agentID string) error {
	if _, err := m.agents.Get(agentID); err != nil {
		return err
	}
	if err := m.tokens.Revoke(agentID); err != nil {
		if errors.Is(err, token.ErrNoRecord) {
			return ErrNotDeployed
		}
		return err
	}
	m.hooks.EmitAsync(ctx, hooks.EventTokenRevoked, map[string]any{"agent_id": agentID})
	return nil
}

// Authorize checks a bearer token presented for agentID and returns the
// deployed agent it unlocks.
func (m *Manager) Authorize(agentID, presented string) (*domain.Agent, error) {
	rec, err := m.tokens.Validate(presented)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if rec.AgentID != agentID {
		return nil, ErrForbidden
	}
	a, err := m.agents.Get(agentID)
	if err != nil {
		return nil, err
	}
	if !a.IsDeployed {
		return nil, ErrNotDeployed
	}
	return a, nil
}

// Forget drops the agent's token from the index after the agent itself
// has been deleted.
func (m *Manager) Forget(agentID string) error {
	return m.tokens.Forget(agentID)
}
