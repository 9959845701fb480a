package store

import "sync"

// Locker hands out one mutex per key. Entries are dropped once no
// goroutine holds or waits on them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is held and returns the matching unlock func.
func (l *Locker) Lock(key string) func() {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// AgentKey scopes writes to an agent's agent.json.
func AgentKey(agentID string) string { return "agent/" + agentID }

// SessionsKey scopes writes to an agent's session list.
func SessionsKey(agentID string) string { return "sessions/" + agentID }

// DeploymentKey scopes writes to an agent's token record.
func DeploymentKey(agentID string) string { return "deployment/" + agentID }

// HistoryKey scopes writes to one session history.
func HistoryKey(agentID, sessionID string) string {
	return "history/" + agentID + "/" + sessionID
}

// TurnKey serializes whole conversation turns on one session. It is
// always taken before any of the keys above.
func TurnKey(agentID, sessionID string) string {
	return "turn/" + agentID + "/" + sessionID
}
