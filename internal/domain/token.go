package domain

import "time"

// TokenRecord is the single API credential held by a deployed agent.
type TokenRecord struct {
	Token     string    `json:"token"`
	AgentID   string    `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"` // nil: never expires
	IsActive  bool       `json:"is_active"`
}

// Expired reports whether the token is past its expiry at now. A token
// without an expiry never expires.
func (t *TokenRecord) Expired(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !now.Before(*t.ExpiresAt)
}

// Usable reports whether the token would authenticate a request at now.
func (t *TokenRecord) Usable(now time.Time) bool {
	return t.IsActive && !t.Expired(now)
}

// DeploymentResult is returned by a deploy operation.
type DeploymentResult struct {
	AgentID     string    `json:"agent_id"`
	Token       string    `json:"api_token"`
	Endpoint    string    `json:"api_endpoint"`
	ExpiresAt   *time.Time `json:"expires_at"`
	Regenerated bool       `json:"regenerated"`
}

// DeploymentStatus describes an agent's current deployment.
type DeploymentStatus struct {
	Deployed          bool         `json:"deployed"`
	Expired           bool         `json:"is_expired"`
	Endpoint          string       `json:"api_endpoint,omitempty"`
	Token             *TokenRecord `json:"token_data,omitempty"`
	NeedsRegeneration bool         `json:"needs_regeneration"`
	Message           string       `json:"message,omitempty"`
}
