// Package agent runs conversations against configured agents: it keeps a
// session's history consistent across send, edit and regenerate turns
// and executes prompts through an LLM provider.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/llm"
	"github.com/soyeahso/agentforge/internal/logging"
)

// Executor runs a fully composed prompt as the given agent.
type Executor interface {
	Execute(ctx context.Context, agent *domain.Agent, prompt string) (string, error)
}

// ContextRenderer formats an agent's resources into prompt context. An
// empty string means the agent has nothing to add.
type ContextRenderer interface {
	Render(agent *domain.Agent) string
}

// AgentSource looks up agent records. Get returns domain.ErrAgentNotFound
// for unknown ids.
type AgentSource interface {
	Get(agentID string) (*domain.Agent, error)
}

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ExecutorConfig carries the generation settings for LLMExecutor.
type ExecutorConfig struct {
	MaxTokens   int
	Temperature *float64
}

// LLMExecutor executes agents with a single completion call.
type LLMExecutor struct {
	client llm.Client
	cfg    ExecutorConfig
	log    *logging.Logger
	now    func() time.Time
}

// NewLLMExecutor creates an executor backed by client.
func NewLLMExecutor(client llm.Client, cfg ExecutorConfig, log *logging.Logger) *LLMExecutor {
	return &LLMExecutor{
		client: client,
		cfg:    cfg,
		log:    log.Sub("executor"),
		now:    time.Now,
	}
}

// Execute implements Executor.
func (e *LLMExecutor) Execute(ctx context.Context, a *domain.Agent, prompt string) (string, error) {
	req := llm.CompletionRequest{
		System: BuildSystemPrompt(a, e.now()),
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: BuildTaskPrompt(prompt)},
		},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	}

	start := time.Now()
	resp, err := e.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("completing with %s: %w", e.client.Name(), err)
	}

	e.log.Debug().
		Str("agent_id", a.ID).
		Str("model", resp.Model).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("agent executed")

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
