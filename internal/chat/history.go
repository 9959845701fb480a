package chat

import (
	"errors"
	"time"

	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/logging"
	"github.com/soyeahso/agentforge/internal/store"
)

// ErrIndexOutOfRange is returned when a message index does not address
// an existing message.
var ErrIndexOutOfRange = errors.New("message index out of range")

func readHistory(layout store.Layout, agentID, sessionID string) ([]domain.Message, error) {
	msgs, _, err := loadHistory(layout, agentID, sessionID)
	return msgs, err
}

// loadHistory also reports whether a history file exists.
func loadHistory(layout store.Layout, agentID, sessionID string) ([]domain.Message, bool, error) {
	var msgs []domain.Message
	found, err := store.ReadJSON(layout.HistoryFile(agentID, sessionID), &msgs)
	if err != nil {
		return nil, found, err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, found, nil
}

func writeHistory(layout store.Layout, agentID, sessionID string, msgs []domain.Message) error {
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return store.WriteJSON(layout.HistoryFile(agentID, sessionID), msgs)
}

// HistoryLog is the ordered message list of each (agent, session).
// Every mutation touches the owning session afterwards.
type HistoryLog struct {
	layout   store.Layout
	locks    *store.Locker
	sessions *SessionStore
	log      *logging.Logger
	now      func() time.Time
}

// NewHistoryLog creates a history log sharing storage and locks with sessions.
func NewHistoryLog(sessions *SessionStore) *HistoryLog {
	return &HistoryLog{
		layout:   sessions.layout,
		locks:    sessions.locks,
		sessions: sessions,
		log:      sessions.log.Sub("history"),
		now:      time.Now,
	}
}

// List returns the session's messages in order. A session without a
// stored history has no messages.
func (h *HistoryLog) List(agentID, sessionID string) ([]domain.Message, error) {
	if err := checkIDs(agentID, sessionID); err != nil {
		return nil, err
	}
	return readHistory(h.layout, agentID, sessionID)
}

// mutate runs fn on the loaded history under the session's history lock
// and saves the result. The session is touched once the lock is released.
// An absent history that stays empty is not written.
func (h *HistoryLog) mutate(agentID, sessionID string, fn func([]domain.Message) ([]domain.Message, error)) ([]domain.Message, error) {
	if err := checkIDs(agentID, sessionID); err != nil {
		return nil, err
	}

	unlock := h.locks.Lock(store.HistoryKey(agentID, sessionID))
	msgs, found, err := loadHistory(h.layout, agentID, sessionID)
	if err == nil {
		msgs, err = fn(msgs)
	}
	if err == nil && !found && len(msgs) == 0 {
		unlock()
		return msgs, nil
	}
	if err == nil {
		err = writeHistory(h.layout, agentID, sessionID, msgs)
	}
	unlock()
	if err != nil {
		return nil, err
	}

	if err := h.sessions.Touch(agentID, sessionID); err != nil {
		h.log.Warn().Err(err).Str("agent_id", agentID).Str("session_id", sessionID).Msg("touching session failed")
	}
	return msgs, nil
}

// Append adds a message at the end of the history and returns it with
// its timestamp set.
func (h *HistoryLog) Append(agentID, sessionID string, role domain.Role, content string) (domain.Message, error) {
	msg := domain.Message{Role: role, Content: content, Timestamp: h.now().UTC()}
	_, err := h.mutate(agentID, sessionID, func(msgs []domain.Message) ([]domain.Message, error) {
		return append(msgs, msg), nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// EditAt replaces the content of message idx and refreshes its timestamp.
func (h *HistoryLog) EditAt(agentID, sessionID string, idx int, content string) (domain.Message, error) {
	var edited domain.Message
	_, err := h.mutate(agentID, sessionID, func(msgs []domain.Message) ([]domain.Message, error) {
		if idx < 0 || idx >= len(msgs) {
			return nil, ErrIndexOutOfRange
		}
		msgs[idx].Content = content
		msgs[idx].Timestamp = h.now().UTC()
		edited = msgs[idx]
		return msgs, nil
	})
	return edited, err
}

// TruncateAfter keeps messages [0, idx] and drops the rest. A negative
// idx clears the history; an idx past the end leaves it unchanged.
func (h *HistoryLog) TruncateAfter(agentID, sessionID string, idx int) ([]domain.Message, error) {
	return h.mutate(agentID, sessionID, func(msgs []domain.Message) ([]domain.Message, error) {
		return truncateAfter(msgs, idx), nil
	})
}

func truncateAfter(msgs []domain.Message, idx int) []domain.Message {
	switch {
	case idx < 0:
		return []domain.Message{}
	case idx < len(msgs):
		return msgs[:idx+1]
	default:
		return msgs
	}
}

// DeleteAt removes message idx, shifting later messages down by one.
func (h *HistoryLog) DeleteAt(agentID, sessionID string, idx int) error {
	_, err := h.mutate(agentID, sessionID, func(msgs []domain.Message) ([]domain.Message, error) {
		if idx < 0 || idx >= len(msgs) {
			return nil, ErrIndexOutOfRange
		}
		return append(msgs[:idx], msgs[idx+1:]...), nil
	})
	return err
}

// Clear empties the history while keeping the session.
func (h *HistoryLog) Clear(agentID, sessionID string) error {
	_, err := h.mutate(agentID, sessionID, func([]domain.Message) ([]domain.Message, error) {
		return []domain.Message{}, nil
	})
	return err
}
