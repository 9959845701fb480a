package store

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

// TokenIndex is a persistent reverse index from API token to agent id.
// Tokens are stored as BLAKE3 digests so the database never holds a
// usable credential.
type TokenIndex struct {
	db *DB
}

// NewTokenIndex wraps db as a token index.
func NewTokenIndex(db *DB) *TokenIndex {
	return &TokenIndex{db: db}
}

func hashToken(token string) string {
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Put maps token to agentID, replacing any token the agent held before.
func (x *TokenIndex) Put(token, agentID string) error {
	tx, err := x.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin token put: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM token_index WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("clearing previous token: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO token_index (token_hash, agent_id) VALUES (?, ?)`,
		hashToken(token), agentID,
	); err != nil {
		return fmt.Errorf("indexing token: %w", err)
	}
	return tx.Commit()
}

// Remove drops token from the index. Unknown tokens are ignored.
func (x *TokenIndex) Remove(token string) error {
	if _, err := x.db.sql.Exec(`DELETE FROM token_index WHERE token_hash = ?`, hashToken(token)); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}

// RemoveAgent drops whatever token agentID holds.
func (x *TokenIndex) RemoveAgent(agentID string) error {
	if _, err := x.db.sql.Exec(`DELETE FROM token_index WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("removing agent token: %w", err)
	}
	return nil
}

// Lookup returns the agent that holds token.
func (x *TokenIndex) Lookup(token string) (string, bool, error) {
	var agentID string
	err := x.db.sql.QueryRow(`SELECT agent_id FROM token_index WHERE token_hash = ?`, hashToken(token)).Scan(&agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up token: %w", err)
	}
	return agentID, true, nil
}

// Reset replaces the whole index with entries (token -> agent id).
func (x *TokenIndex) Reset(entries map[string]string) error {
	tx, err := x.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin token reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM token_index`); err != nil {
		return fmt.Errorf("clearing token index: %w", err)
	}
	for token, agentID := range entries {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO token_index (token_hash, agent_id) VALUES (?, ?)`,
			hashToken(token), agentID,
		); err != nil {
			return fmt.Errorf("indexing token for %s: %w", agentID, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of indexed tokens.
func (x *TokenIndex) Count() (int, error) {
	var n int
	if err := x.db.sql.QueryRow(`SELECT COUNT(*) FROM token_index`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tokens: %w", err)
	}
	return n, nil
}
