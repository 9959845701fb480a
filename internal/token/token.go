// Package token issues, validates, and revokes the per-agent API tokens
// that authenticate calls to a deployed agent's chat endpoint.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/logging"
	"github.com/soyeahso/agentforge/internal/store"
)

const (
	// Prefix starts every issued token.
	Prefix = "agt_"

	randomLength = 32
	alphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	// ErrTokenNotFound covers every way a presented token can fail to
	// authenticate: unknown, revoked, expired, or unreadable.
	ErrTokenNotFound = errors.New("invalid or expired token")

	// ErrNoRecord is returned when an agent has never been issued a token.
	ErrNoRecord = errors.New("no token record for agent")
)

// Generate returns a new random token: Prefix followed by 32 characters
// drawn uniformly from [A-Za-z0-9] by a cryptographic source.
func Generate() (string, error) {
	var b strings.Builder
	b.Grow(len(Prefix) + randomLength)
	b.WriteString(Prefix)
	limit := big.NewInt(int64(len(alphabet)))
	for i := 0; i < randomLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("reading random source: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// WellFormed reports whether s has the shape of an issued token.
func WellFormed(s string) bool {
	if len(s) != len(Prefix)+randomLength || !strings.HasPrefix(s, Prefix) {
		return false
	}
	for i := len(Prefix); i < len(s); i++ {
		if !strings.ContainsRune(alphabet, rune(s[i])) {
			return false
		}
	}
	return true
}

// Index maps tokens back to the agent holding them. An agent holds at
// most one indexed token; Put replaces the previous one.
type Index interface {
	Put(token, agentID string) error
	Remove(token string) error
	RemoveAgent(agentID string) error
	Lookup(token string) (agentID string, ok bool, err error)
	Reset(entries map[string]string) error
}

// deploymentFile is the on-disk shape of an agent's deployment.json.
type deploymentFile struct {
	Token *domain.TokenRecord `json:"token,omitempty"`
}

// Store persists one token record per agent and answers validation
// queries through an Index.
type Store struct {
	layout store.Layout
	locks  *store.Locker
	index  Index
	ttl    time.Duration
	log    *logging.Logger
	now    func() time.Time
}

// NewStore creates a token store. Tokens issued with a ttl of zero or
// less never expire.
func NewStore(layout store.Layout, locks *store.Locker, index Index, ttl time.Duration, log *logging.Logger) *Store {
	return &Store{
		layout: layout,
		locks:  locks,
		index:  index,
		ttl:    ttl,
		log:    log.Sub("tokens"),
		now:    time.Now,
	}
}

// TTL returns the lifetime given to newly issued tokens; zero means none.
func (s *Store) TTL() time.Duration { return s.ttl }

// Rebuild repopulates the index from every agent's record on disk. It
// runs once at startup; afterwards the index is maintained incrementally.
func (s *Store) Rebuild() (int, error) {
	ids, err := s.layout.AgentIDs()
	if err != nil {
		return 0, err
	}
	entries := make(map[string]string)
	for _, id := range ids {
		rec, err := s.read(id)
		if err != nil {
			s.log.Warn().Err(err).Str("agent_id", id).Msg("skipping unreadable token record")
			continue
		}
		if rec != nil && rec.IsActive {
			entries[rec.Token] = id
		}
	}
	if err := s.index.Reset(entries); err != nil {
		return 0, fmt.Errorf("rebuilding token index: %w", err)
	}
	s.log.Info().Int("tokens", len(entries)).Msg("token index rebuilt")
	return len(entries), nil
}

func (s *Store) read(agentID string) (*domain.TokenRecord, error) {
	var f deploymentFile
	if _, err := store.ReadJSON(s.layout.DeploymentFile(agentID), &f); err != nil {
		return nil, err
	}
	return f.Token, nil
}

// Get returns the agent's current token record, or ErrNoRecord.
func (s *Store) Get(agentID string) (*domain.TokenRecord, error) {
	if err := store.CheckID(agentID); err != nil {
		return nil, err
	}
	rec, err := s.read(agentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNoRecord
	}
	return rec, nil
}

// Issue creates a fresh active token for agentID, replacing any previous
// one. The previous token stops validating immediately.
func (s *Store) Issue(agentID string) (*domain.TokenRecord, error) {
	if err := store.CheckID(agentID); err != nil {
		return nil, err
	}
	tok, err := Generate()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &domain.TokenRecord{
		Token:     tok,
		AgentID:   agentID,
		CreatedAt: now,
		IsActive:  true,
	}
	if s.ttl > 0 {
		exp := now.Add(s.ttl)
		rec.ExpiresAt = &exp
	}

	unlock := s.locks.Lock(store.DeploymentKey(agentID))
	defer unlock()

	if err := store.WriteJSON(s.layout.DeploymentFile(agentID), deploymentFile{Token: rec}); err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}
	if err := s.index.Put(tok, agentID); err != nil {
		return nil, fmt.Errorf("indexing token: %w", err)
	}

	ev := s.log.Info().Str("agent_id", agentID)
	if rec.ExpiresAt != nil {
		ev = ev.Time("expires_at", *rec.ExpiresAt)
	}
	ev.Msg("token issued")
	return rec, nil
}

// Validate resolves a presented token to its record. Only an active,
// unexpired token that is the current token of its agent validates.
// Storage failures are logged and reported as ErrTokenNotFound.
func (s *Store) Validate(presented string) (*domain.TokenRecord, error) {
	if !WellFormed(presented) {
		return nil, ErrTokenNotFound
	}

	agentID, ok, err := s.index.Lookup(presented)
	if err != nil {
		s.log.Error().Err(err).Msg("token index lookup failed")
		return nil, ErrTokenNotFound
	}
	if !ok {
		return nil, ErrTokenNotFound
	}

	rec, err := s.read(agentID)
	if err != nil {
		s.log.Error().Err(err).Str("agent_id", agentID).Msg("reading token record failed")
		return nil, ErrTokenNotFound
	}
	if rec == nil || rec.AgentID != agentID {
		return nil, ErrTokenNotFound
	}
	if subtle.ConstantTimeCompare([]byte(rec.Token), []byte(presented)) != 1 {
		return nil, ErrTokenNotFound
	}
	if !rec.Usable(s.now()) {
		return nil, ErrTokenNotFound
	}
	return rec, nil
}

// Revoke deactivates the agent's token. Revoking twice is not an error.
func (s *Store) Revoke(agentID string) error {
	if err := store.CheckID(agentID); err != nil {
		return err
	}

	unlock := s.locks.Lock(store.DeploymentKey(agentID))
	defer unlock()

	rec, err := s.read(agentID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNoRecord
	}
	if rec.IsActive {
		rec.IsActive = false
		if err := store.WriteJSON(s.layout.DeploymentFile(agentID), deploymentFile{Token: rec}); err != nil {
			return fmt.Errorf("saving revoked token: %w", err)
		}
		s.log.Info().Str("agent_id", agentID).Msg("token revoked")
	}
	if err := s.index.Remove(rec.Token); err != nil {
		return fmt.Errorf("unindexing token: %w", err)
	}
	return nil
}

// IsExpired reports whether the agent's token can no longer be used:
// it is past its expiry or revoked. An agent without a readable record
// counts as expired.
func (s *Store) IsExpired(agentID string) bool {
	rec, err := s.Get(agentID)
	if err != nil {
		if !errors.Is(err, ErrNoRecord) {
			s.log.Warn().Err(err).Str("agent_id", agentID).Msg("treating unreadable token as expired")
		}
		return true
	}
	return !rec.Usable(s.now())
}

// Forget drops the agent from the index. Used after the agent's data
// directory has been deleted.
func (s *Store) Forget(agentID string) error {
	return s.index.RemoveAgent(agentID)
}
