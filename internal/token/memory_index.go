package token

import "sync"

// MemoryIndex is an Index held entirely in memory.
type MemoryIndex struct {
	mu      sync.RWMutex
	byToken map[string]string
	byAgent map[string]string
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		byToken: make(map[string]string),
		byAgent: make(map[string]string),
	}
}

func (m *MemoryIndex) Put(token, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.byAgent[agentID]; ok {
		delete(m.byToken, old)
	}
	m.byToken[token] = agentID
	m.byAgent[agentID] = token
	return nil
}

func (m *MemoryIndex) Remove(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if agentID, ok := m.byToken[token]; ok {
		delete(m.byToken, token)
		delete(m.byAgent, agentID)
	}
	return nil
}

func (m *MemoryIndex) RemoveAgent(agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token, ok := m.byAgent[agentID]; ok {
		delete(m.byAgent, agentID)
		delete(m.byToken, token)
	}
	return nil
}

func (m *MemoryIndex) Lookup(token string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agentID, ok := m.byToken[token]
	return agentID, ok, nil
}

func (m *MemoryIndex) Reset(entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byToken = make(map[string]string, len(entries))
	m.byAgent = make(map[string]string, len(entries))
	for token, agentID := range entries {
		m.byToken[token] = agentID
		m.byAgent[agentID] = token
	}
	return nil
}

// Len returns the number of indexed tokens.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byToken)
}
