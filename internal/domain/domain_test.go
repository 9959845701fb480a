package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAgent() Agent {
	return Agent{
		ID:        "a1",
		Name:      "Research Bot",
		Role:      "Senior research analyst",
		Backstory: "Spent a decade digging through archives for answers.",
		Goal:      "Answer research questions accurately",
	}
}

func TestAgentValidate(t *testing.T) {
	a := validAgent()
	require.NoError(t, a.Validate())

	tests := []struct {
		name   string
		mutate func(*Agent)
		field  string
	}{
		{"empty name", func(a *Agent) { a.Name = "  " }, "name"},
		{"long name", func(a *Agent) {
			a.Name = "x"
			for len(a.Name) <= 100 {
				a.Name += "x"
			}
		}, "name"},
		{"bad name chars", func(a *Agent) { a.Name = "bot/../etc" }, "name"},
		{"short role", func(a *Agent) { a.Role = "analyst" }, "role"},
		{"short backstory", func(a *Agent) { a.Backstory = "too short" }, "backstory"},
		{"short goal", func(a *Agent) { a.Goal = "help" }, "goal"},
		{"bad resource type", func(a *Agent) {
			a.Resources = []Resource{{Type: "video", Name: "v"}}
		}, "resources[0].type"},
		{"relative link", func(a *Agent) {
			a.Resources = []Resource{{Type: ResourceLink, Name: "docs", Value: "docs/page"}}
		}, "resources[0].value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAgent()
			tt.mutate(&a)
			err := a.Validate()
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestResourcesOf(t *testing.T) {
	a := validAgent()
	a.Resources = []Resource{
		{Type: ResourceTool, Name: "calculator"},
		{Type: ResourceLink, Name: "site", Value: "https://example.com"},
		{Type: ResourceTool, Name: "web_search"},
	}
	tools := a.ResourcesOf(ResourceTool)
	require.Len(t, tools, 2)
	assert.Equal(t, "calculator", tools[0].Name)
	assert.Equal(t, "web_search", tools[1].Name)
	assert.Empty(t, a.ResourcesOf(ResourceDocument))
}

func TestTokenRecordExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)
	rec := TokenRecord{IsActive: true, ExpiresAt: &exp}

	assert.False(t, rec.Expired(now))
	assert.True(t, rec.Usable(now))
	assert.True(t, rec.Expired(now.Add(time.Hour)), "expiry instant counts as expired")
	assert.False(t, rec.Usable(now.Add(2*time.Hour)))

	rec.IsActive = false
	assert.False(t, rec.Usable(now))
}

func TestTokenRecordWithoutExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := TokenRecord{IsActive: true}

	assert.False(t, rec.Expired(now.AddDate(50, 0, 0)))
	assert.True(t, rec.Usable(now.AddDate(50, 0, 0)))

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"expires_at":null`)
}
