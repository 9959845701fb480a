// Package domain holds the data types shared across agentforge components.
package domain

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrAgentNotFound is returned when no agent exists for an id.
var ErrAgentNotFound = errors.New("agent not found")

// ResourceType classifies an agent resource.
type ResourceType string

const (
	ResourceTool     ResourceType = "tool"
	ResourceLink     ResourceType = "link"
	ResourceDocument ResourceType = "document"
)

// Resource is a tool, link, or document attached to an agent.
// For documents Value is the stored filename under the agent's documents dir.
type Resource struct {
	Type        ResourceType `json:"type"`
	Name        string       `json:"name"`
	Value       string       `json:"value"`
	Description string       `json:"description,omitempty"`
}

// Agent is a configured assistant persona.
type Agent struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	Backstory   string     `json:"backstory"`
	Goal        string     `json:"goal"`
	Resources   []Resource `json:"resources"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	APIToken    string     `json:"api_token,omitempty"`
	APIEndpoint string     `json:"api_endpoint,omitempty"`
	IsDeployed  bool       `json:"is_deployed"`
}

// ResourcesOf returns the agent's resources of one type, in order.
func (a *Agent) ResourcesOf(t ResourceType) []Resource {
	var out []Resource
	for _, r := range a.Resources {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// ValidationError reports an invalid field on user-supplied input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var agentNamePattern = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)

// Validate checks the user-editable agent fields.
func (a *Agent) Validate() error {
	name := strings.TrimSpace(a.Name)
	switch {
	case name == "":
		return &ValidationError{Field: "name", Message: "is required"}
	case utf8.RuneCountInString(name) > 100:
		return &ValidationError{Field: "name", Message: "must be at most 100 characters"}
	case !agentNamePattern.MatchString(name):
		return &ValidationError{Field: "name", Message: "may contain only letters, numbers, spaces, hyphens and underscores"}
	}
	if err := minLength("role", a.Role, 10); err != nil {
		return err
	}
	if err := minLength("backstory", a.Backstory, 20); err != nil {
		return err
	}
	if err := minLength("goal", a.Goal, 10); err != nil {
		return err
	}
	for i, r := range a.Resources {
		if err := r.Validate(); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				ve.Field = fmt.Sprintf("resources[%d].%s", i, ve.Field)
			}
			return err
		}
	}
	return nil
}

func minLength(field, value string, n int) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < n {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at least %d characters", n)}
	}
	return nil
}

// Validate checks a single resource.
func (r Resource) Validate() error {
	switch r.Type {
	case ResourceTool, ResourceLink, ResourceDocument:
	default:
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown resource type %q", r.Type)}
	}
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if r.Type == ResourceLink {
		u, err := url.Parse(r.Value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ValidationError{Field: "value", Message: "link must be an absolute URL"}
		}
	}
	return nil
}
