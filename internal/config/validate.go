package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "server.customBindHost",
			Message: "required when bind is custom",
		})
	}

	if cfg.Server.TLS.Enabled && (cfg.Server.TLS.CertPath == "" || cfg.Server.TLS.KeyPath == "") {
		issues = append(issues, ValidationIssue{
			Path:    "server.tls",
			Message: "certPath and keyPath are required when TLS is enabled",
		})
	}

	// Storage validation
	validIndexes := []string{"memory", "sqlite"}
	if cfg.Storage.TokenIndex != "" && !slices.Contains(validIndexes, cfg.Storage.TokenIndex) {
		issues = append(issues, ValidationIssue{
			Path:    "storage.tokenIndex",
			Message: fmt.Sprintf("must be one of %v, got %q", validIndexes, cfg.Storage.TokenIndex),
		})
	}

	// Deployment validation
	if cfg.Deployment.TokenTTLHours < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "deployment.tokenTtlHours",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Deployment.TokenTTLHours),
		})
	}
	if cfg.Deployment.BaseURL != "" {
		if u, err := url.Parse(cfg.Deployment.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, ValidationIssue{
				Path:    "deployment.baseUrl",
				Message: fmt.Sprintf("must be an absolute URL, got %q", cfg.Deployment.BaseURL),
			})
		}
	}

	// LLM validation
	validProviders := []string{"openai", "claude", "ollama", "mock"}
	if !slices.Contains(validProviders, cfg.LLM.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "llm.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.LLM.Provider),
		})
	}
	if (cfg.LLM.Provider == "openai" || cfg.LLM.Provider == "claude") && cfg.LLM.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "llm.apiKey",
			Message: "required for provider " + cfg.LLM.Provider,
		})
	}
	if cfg.LLM.Provider != "mock" && cfg.LLM.Model == "" {
		issues = append(issues, ValidationIssue{
			Path:    "llm.model",
			Message: "required",
		})
	}
	for i, fb := range cfg.LLM.Fallbacks {
		if strings.TrimSpace(fb) == "" {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("llm.fallbacks[%d]", i),
				Message: "must not be empty",
			})
		}
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		issues = append(issues, ValidationIssue{
			Path:    "llm.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %g", cfg.LLM.Temperature),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	for event, entries := range cfg.Hooks.Events {
		for i, h := range entries {
			if h.Command == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("hooks.events.%s[%d].command", event, i),
					Message: "command is required",
				})
			}
		}
	}

	return issues
}
