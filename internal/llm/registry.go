package llm

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/agentforge/internal/config"
	"github.com/soyeahso/agentforge/internal/logging"
)

// Registry manages LLM provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps a model name/alias to a provider.
// e.g., Alias("groq", "openai") means "groq" resolves to the "openai" provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[model]; ok {
		return c, nil
	}

	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}

	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig registers the configured provider and makes it
// the fallback. The mock provider is always available under "mock".
func NewRegistryFromConfig(cfg config.LLMConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	reg.Register("mock", &MockClient{ProviderName: "mock"})

	switch cfg.Provider {
	case "openai":
		reg.Register("openai", NewOpenAIAPIClient(cfg.APIKey, cfg.Model, cfg.Endpoint, timeout))
		for _, alias := range []string{"groq", "gpt"} {
			reg.Alias(alias, "openai")
		}
	case "claude":
		reg.Register("claude", NewClaudeAPIClient(cfg.APIKey, cfg.Model, cfg.Endpoint, timeout))
		for _, alias := range []string{"anthropic", "sonnet", "opus", "haiku"} {
			reg.Alias(alias, "claude")
		}
	case "ollama":
		reg.Register("ollama", NewOllamaAPIClient(cfg.Endpoint, cfg.Model, timeout))
		for _, alias := range []string{"llama", "llama3", "mistral"} {
			reg.Alias(alias, "ollama")
		}
	}

	reg.SetFallback(cfg.Provider)
	return reg
}
