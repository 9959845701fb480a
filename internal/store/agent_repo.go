package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/logging"
)

// AgentRepository persists agent definitions as agent.json files.
type AgentRepository struct {
	layout Layout
	locks  *Locker
	log    *logging.Logger
	now    func() time.Time
}

// NewAgentRepository creates a repository over layout. locks may be shared
// with other components operating on the same tree.
func NewAgentRepository(layout Layout, locks *Locker, log *logging.Logger) *AgentRepository {
	return &AgentRepository{
		layout: layout,
		locks:  locks,
		log:    log.Sub("agents"),
		now:    time.Now,
	}
}

// Create assigns an id and timestamps to a and stores it.
func (r *AgentRepository) Create(a domain.Agent) (*domain.Agent, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	a.ID = uuid.New().String()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.APIToken = ""
	a.APIEndpoint = ""
	a.IsDeployed = false
	if a.Resources == nil {
		a.Resources = []domain.Resource{}
	}

	unlock := r.locks.Lock(AgentKey(a.ID))
	defer unlock()

	if err := WriteJSON(r.layout.AgentFile(a.ID), a); err != nil {
		return nil, err
	}
	r.log.Info().Str("agent_id", a.ID).Str("name", a.Name).Msg("agent created")
	return &a, nil
}

// Get loads an agent. It returns domain.ErrAgentNotFound when absent.
func (r *AgentRepository) Get(agentID string) (*domain.Agent, error) {
	if err := CheckID(agentID); err != nil {
		return nil, domain.ErrAgentNotFound
	}
	return r.read(agentID)
}

func (r *AgentRepository) read(agentID string) (*domain.Agent, error) {
	var a domain.Agent
	found, err := ReadJSON(r.layout.AgentFile(agentID), &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrAgentNotFound
	}
	return &a, nil
}

// List returns all agents, newest first. Unreadable entries are skipped.
func (r *AgentRepository) List() ([]domain.Agent, error) {
	ids, err := r.layout.AgentIDs()
	if err != nil {
		return nil, err
	}
	agents := make([]domain.Agent, 0, len(ids))
	for _, id := range ids {
		a, err := r.read(id)
		if err != nil {
			if !errors.Is(err, domain.ErrAgentNotFound) {
				r.log.Warn().Err(err).Str("agent_id", id).Msg("skipping unreadable agent")
			}
			continue
		}
		agents = append(agents, *a)
	}
	sort.SliceStable(agents, func(i, j int) bool {
		return agents[i].CreatedAt.After(agents[j].CreatedAt)
	})
	return agents, nil
}

// Update applies mutate to the stored agent and saves the result. Document
// files no longer referenced by the agent are removed from disk.
func (r *AgentRepository) Update(agentID string, mutate func(*domain.Agent) error) (*domain.Agent, error) {
	if err := CheckID(agentID); err != nil {
		return nil, domain.ErrAgentNotFound
	}

	unlock := r.locks.Lock(AgentKey(agentID))
	defer unlock()

	a, err := r.read(agentID)
	if err != nil {
		return nil, err
	}
	before := documentFiles(a)

	if err := mutate(a); err != nil {
		return nil, err
	}
	a.ID = agentID
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.UpdatedAt = r.now().UTC()

	if err := WriteJSON(r.layout.AgentFile(agentID), a); err != nil {
		return nil, err
	}

	after := documentFiles(a)
	for name := range before {
		if _, kept := after[name]; kept {
			continue
		}
		path := filepath.Join(r.layout.DocumentsDir(agentID), filepath.Base(name))
		if err := RemoveFile(path); err != nil {
			r.log.Warn().Err(err).Str("agent_id", agentID).Str("document", name).Msg("failed to remove document")
		}
	}
	return a, nil
}

func documentFiles(a *domain.Agent) map[string]struct{} {
	out := make(map[string]struct{})
	for _, d := range a.ResourcesOf(domain.ResourceDocument) {
		out[d.Value] = struct{}{}
	}
	return out
}

// SetDeployment records a freshly issued token and endpoint on the agent
// and marks it deployed.
func (r *AgentRepository) SetDeployment(agentID, token, endpoint string) (*domain.Agent, error) {
	if err := CheckID(agentID); err != nil {
		return nil, domain.ErrAgentNotFound
	}

	unlock := r.locks.Lock(AgentKey(agentID))
	defer unlock()

	a, err := r.read(agentID)
	if err != nil {
		return nil, err
	}
	a.APIToken = token
	a.APIEndpoint = endpoint
	a.IsDeployed = true
	a.UpdatedAt = r.now().UTC()

	if err := WriteJSON(r.layout.AgentFile(agentID), a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes the agent and everything stored under it.
func (r *AgentRepository) Delete(agentID string) error {
	if err := CheckID(agentID); err != nil {
		return domain.ErrAgentNotFound
	}

	unlock := r.locks.Lock(AgentKey(agentID))
	defer unlock()

	if _, err := os.Stat(r.layout.AgentFile(agentID)); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrAgentNotFound
		}
		return fmt.Errorf("checking agent: %w", err)
	}
	if err := os.RemoveAll(r.layout.AgentDir(agentID)); err != nil {
		return fmt.Errorf("deleting agent %s: %w", agentID, err)
	}
	r.log.Info().Str("agent_id", agentID).Msg("agent deleted")
	return nil
}
