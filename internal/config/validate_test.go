package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.LLM.APIKey = "test-key"
	return cfg
}

func TestValidateDefaultsWithKey(t *testing.T) {
	cfg := validConfig()
	assert.Empty(t, Validate(&cfg))
}

func TestValidateIssues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad bind", func(c *Config) { c.Server.Bind = "tailnet" }, "server.bind"},
		{"custom without host", func(c *Config) { c.Server.Bind = "custom" }, "server.customBindHost"},
		{"tls without cert", func(c *Config) { c.Server.TLS.Enabled = true }, "server.tls"},
		{"bad token index", func(c *Config) { c.Storage.TokenIndex = "redis" }, "storage.tokenIndex"},
		{"negative ttl", func(c *Config) { c.Deployment.TokenTTLHours = -1 }, "deployment.tokenTtlHours"},
		{"relative base url", func(c *Config) { c.Deployment.BaseURL = "agents.local" }, "deployment.baseUrl"},
		{"bad provider", func(c *Config) { c.LLM.Provider = "gemini" }, "llm.provider"},
		{"missing key", func(c *Config) { c.LLM.APIKey = "" }, "llm.apiKey"},
		{"missing model", func(c *Config) { c.LLM.Model = "" }, "llm.model"},
		{"empty fallback", func(c *Config) { c.LLM.Fallbacks = []string{"llama-3.1-8b-instant", " "} }, "llm.fallbacks[1]"},
		{"bad temperature", func(c *Config) { c.LLM.Temperature = 3 }, "llm.temperature"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad console style", func(c *Config) { c.Logging.ConsoleStyle = "compact" }, "logging.consoleStyle"},
		{"empty hook command", func(c *Config) {
			c.Hooks.Events = map[string][]HookEntry{"agent_deployed": {{}}}
		}, "hooks.events.agent_deployed[0].command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			issues := Validate(&cfg)
			var paths []string
			for _, i := range issues {
				paths = append(paths, i.Path)
			}
			assert.Contains(t, paths, tt.path)
		})
	}
}

func TestValidateOllamaNeedsNoKey(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "llama3"
	assert.Empty(t, Validate(&cfg))
}

func TestValidationIssueString(t *testing.T) {
	i := ValidationIssue{Path: "server.port", Message: "bad"}
	assert.Equal(t, "server.port: bad", i.String())
}
