// Package chat stores an agent's conversation sessions and the ordered
// message history of each session.
package chat

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/logging"
	"github.com/soyeahso/agentforge/internal/store"
)

var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrEmptyTitle      = errors.New("session title must not be empty")
)

// SessionStore manages the per-agent list of chat sessions.
type SessionStore struct {
	layout store.Layout
	locks  *store.Locker
	log    *logging.Logger
	now    func() time.Time
}

// NewSessionStore creates a session store over layout.
func NewSessionStore(layout store.Layout, locks *store.Locker, log *logging.Logger) *SessionStore {
	return &SessionStore{
		layout: layout,
		locks:  locks,
		log:    log.Sub("sessions"),
		now:    time.Now,
	}
}

func checkIDs(ids ...string) error {
	for _, id := range ids {
		if err := store.CheckID(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *SessionStore) readList(agentID string) ([]domain.Session, error) {
	var sessions []domain.Session
	if _, err := store.ReadJSON(s.layout.SessionsFile(agentID), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionStore) writeList(agentID string, sessions []domain.Session) error {
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return store.WriteJSON(s.layout.SessionsFile(agentID), sessions)
}

func (s *SessionStore) newSession(title string) domain.Session {
	now := s.now().UTC()
	return domain.Session{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// List returns the agent's sessions, most recently updated first. An
// agent without sessions gets a "Default Chat" session created on the
// spot. Message counts are recomputed from the stored histories.
func (s *SessionStore) List(agentID string) ([]domain.Session, error) {
	if err := checkIDs(agentID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(store.SessionsKey(agentID))
	defer unlock()

	sessions, err := s.readList(agentID)
	if err != nil {
		return nil, err
	}

	if len(sessions) == 0 {
		sess := s.newSession(DefaultTitle)
		if err := writeHistory(s.layout, agentID, sess.ID, nil); err != nil {
			return nil, err
		}
		sessions = []domain.Session{sess}
		if err := s.writeList(agentID, sessions); err != nil {
			return nil, err
		}
		s.log.Info().Str("agent_id", agentID).Str("session_id", sess.ID).Msg("created default session")
	}

	for i := range sessions {
		msgs, err := readHistory(s.layout, agentID, sessions[i].ID)
		if err != nil {
			s.log.Warn().Err(err).Str("agent_id", agentID).Str("session_id", sessions[i].ID).Msg("unreadable history")
			continue
		}
		sessions[i].MessageCount = len(msgs)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// Get returns one session entry.
func (s *SessionStore) Get(agentID, sessionID string) (*domain.Session, error) {
	if err := checkIDs(agentID, sessionID); err != nil {
		return nil, ErrSessionNotFound
	}
	sessions, err := s.readList(agentID)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID == sessionID {
			sess := sessions[i]
			if msgs, err := readHistory(s.layout, agentID, sessionID); err == nil {
				sess.MessageCount = len(msgs)
			}
			return &sess, nil
		}
	}
	return nil, ErrSessionNotFound
}

// Create adds a session with an empty history. An empty title becomes
// "Chat N" where N is one more than the current number of sessions.
func (s *SessionStore) Create(agentID, title string) (*domain.Session, error) {
	if err := checkIDs(agentID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(store.SessionsKey(agentID))
	defer unlock()

	sessions, err := s.readList(agentID)
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = NumberedTitle(len(sessions) + 1)
	}
	sess := s.newSession(title)

	if err := writeHistory(s.layout, agentID, sess.ID, nil); err != nil {
		return nil, err
	}
	if err := s.writeList(agentID, append(sessions, sess)); err != nil {
		return nil, err
	}

	s.log.Info().Str("agent_id", agentID).Str("session_id", sess.ID).Str("title", title).Msg("session created")
	return &sess, nil
}

// Rename changes a session's title and bumps its updated time.
func (s *SessionStore) Rename(agentID, sessionID, title string) (*domain.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	return s.update(agentID, sessionID, func(sess *domain.Session) bool {
		sess.Title = title
		return true
	})
}

// Touch recomputes the session's message count and bumps its updated
// time. A history without a session entry is left alone.
func (s *SessionStore) Touch(agentID, sessionID string) error {
	_, err := s.update(agentID, sessionID, func(*domain.Session) bool { return true })
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	return err
}

// AutoTitle replaces a default-pattern title with one derived from
// firstMessage. It reports whether the title changed.
func (s *SessionStore) AutoTitle(agentID, sessionID, firstMessage string) (bool, error) {
	changed := false
	_, err := s.update(agentID, sessionID, func(sess *domain.Session) bool {
		if !IsDefaultTitle(sess.Title) {
			return false
		}
		sess.Title = DeriveTitle(firstMessage)
		changed = true
		return true
	})
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	return changed, err
}

// update applies fn to the session entry under the list lock. When fn
// reports a change the count is recomputed and updated_at bumped.
func (s *SessionStore) update(agentID, sessionID string, fn func(*domain.Session) bool) (*domain.Session, error) {
	if err := checkIDs(agentID, sessionID); err != nil {
		return nil, ErrSessionNotFound
	}

	unlock := s.locks.Lock(store.SessionsKey(agentID))
	defer unlock()

	sessions, err := s.readList(agentID)
	if err != nil {
		return nil, err
	}

	for i := range sessions {
		if sessions[i].ID != sessionID {
			continue
		}
		if !fn(&sessions[i]) {
			sess := sessions[i]
			return &sess, nil
		}
		msgs, err := readHistory(s.layout, agentID, sessionID)
		if err != nil {
			return nil, err
		}
		sessions[i].MessageCount = len(msgs)
		sessions[i].UpdatedAt = s.now().UTC()
		if err := s.writeList(agentID, sessions); err != nil {
			return nil, err
		}
		sess := sessions[i]
		return &sess, nil
	}
	return nil, ErrSessionNotFound
}

// Delete removes the session entry and its history. Deleting a session
// that does not exist succeeds. After the write the list is read back to
// confirm the entry is gone.
func (s *SessionStore) Delete(agentID, sessionID string) error {
	if err := checkIDs(agentID, sessionID); err != nil {
		return err
	}

	unlock := s.locks.Lock(store.SessionsKey(agentID))
	defer unlock()

	hunlock := s.locks.Lock(store.HistoryKey(agentID, sessionID))
	err := store.RemoveFile(s.layout.HistoryFile(agentID, sessionID))
	hunlock()
	if err != nil {
		return err
	}

	sessions, err := s.readList(agentID)
	if err != nil {
		return err
	}
	kept := make([]domain.Session, 0, len(sessions))
	for _, sess := range sessions {
		if sess.ID != sessionID {
			kept = append(kept, sess)
		}
	}
	if len(kept) == len(sessions) {
		return nil
	}
	if err := s.writeList(agentID, kept); err != nil {
		return err
	}

	after, err := s.readList(agentID)
	if err != nil {
		return fmt.Errorf("verifying session delete: %w", err)
	}
	for _, sess := range after {
		if sess.ID == sessionID {
			return fmt.Errorf("session %s still listed after delete", sessionID)
		}
	}

	s.log.Info().Str("agent_id", agentID).Str("session_id", sessionID).Msg("session deleted")
	return nil
}
