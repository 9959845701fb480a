package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/soyeahso/agentforge/internal/agent"
	"github.com/soyeahso/agentforge/internal/chat"
	"github.com/soyeahso/agentforge/internal/config"
	"github.com/soyeahso/agentforge/internal/deploy"
	"github.com/soyeahso/agentforge/internal/gateway"
	"github.com/soyeahso/agentforge/internal/hooks"
	"github.com/soyeahso/agentforge/internal/llm"
	"github.com/soyeahso/agentforge/internal/logging"
	"github.com/soyeahso/agentforge/internal/resource"
	"github.com/soyeahso/agentforge/internal/store"
	"github.com/soyeahso/agentforge/internal/token"
)

// app holds every component wired from one config. Commands that touch
// agent data build one and close it when done.
type app struct {
	cfg   config.Config
	log   *logging.Logger
	hooks *hooks.Manager

	agents       *store.AgentRepository
	documents    *resource.Documents
	sessions     *chat.SessionStore
	history      *chat.HistoryLog
	tokens       *token.Store
	deployments  *deploy.Manager
	orchestrator *agent.Orchestrator
	providers    []string

	closers []io.Closer
}

func newApp(cfg config.Config) (*app, error) {
	applog, logCloser, err := logging.Open(cfg.Logging.Level, cfg.Logging.ConsoleStyle, cfg.Logging.File)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: applog, closers: []io.Closer{logCloser}}

	if err := paths.EnsureDirs(); err != nil {
		a.Close()
		return nil, fmt.Errorf("creating data directories: %w", err)
	}

	layout := store.NewLayout(paths.AgentsDir(cfg))
	locks := store.NewLocker()

	a.hooks = hooks.NewManager(applog)
	if n := hooks.RegisterCommands(a.hooks, cfg.Hooks); n > 0 {
		applog.Info().Int("count", n).Msg("command hooks registered")
	}

	index, err := a.openTokenIndex()
	if err != nil {
		a.Close()
		return nil, err
	}
	ttl := time.Duration(cfg.Deployment.TokenTTLHours) * time.Hour
	a.tokens = token.NewStore(layout, locks, index, ttl, applog)
	n, err := a.tokens.Rebuild()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("rebuilding token index: %w", err)
	}
	applog.Debug().Int("tokens", n).Msg("token index rebuilt")

	a.agents = store.NewAgentRepository(layout, locks, applog)
	a.documents = resource.NewDocuments(layout)
	a.sessions = chat.NewSessionStore(layout, locks, applog)
	a.history = chat.NewHistoryLog(a.sessions)
	a.deployments = deploy.NewManager(a.agents, a.tokens, cfg.PublicBaseURL(), a.hooks, applog)

	registry := llm.NewRegistryFromConfig(cfg.LLM, applog)
	a.providers = registry.List()
	temperature := cfg.LLM.Temperature
	executor := agent.NewLLMExecutor(
		agent.NewFailoverClient(registry, cfg.LLM.Model, cfg.LLM.Fallbacks, applog),
		agent.ExecutorConfig{MaxTokens: cfg.LLM.MaxTokens, Temperature: &temperature},
		applog,
	)
	a.orchestrator = agent.NewOrchestrator(agent.OrchestratorDeps{
		Agents:   a.agents,
		Sessions: a.sessions,
		History:  a.history,
		Renderer: resource.NewRenderer(a.documents),
		Executor: executor,
		Locks:    locks,
		Hooks:    a.hooks,
	}, applog)

	return a, nil
}

func (a *app) openTokenIndex() (token.Index, error) {
	if a.cfg.Storage.TokenIndex != "sqlite" {
		return token.NewMemoryIndex(), nil
	}
	db, err := store.Open(paths.TokenIndexDB(), a.log)
	if err != nil {
		return nil, fmt.Errorf("opening token index: %w", err)
	}
	a.closers = append(a.closers, db)
	a.log.Info().Str("path", paths.TokenIndexDB()).Msg("using SQLite token index")
	return store.NewTokenIndex(db), nil
}

func (a *app) services() gateway.Services {
	return gateway.Services{
		Agents:       a.agents,
		Documents:    a.documents,
		Sessions:     a.sessions,
		Orchestrator: a.orchestrator,
		History:      a.history,
		Deployments:  a.deployments,
	}
}

// Close waits for pending hooks and releases the database and log file.
func (a *app) Close() {
	if a.hooks != nil {
		a.hooks.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

// withApp loads the config, builds the app, and runs fn against it.
func withApp(fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
