package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".agentforge"

// Paths holds resolved filesystem paths for agentforge data.
type Paths struct {
	Base   string // ~/.agentforge
	Config string // ~/.agentforge/config.yaml
	Agents string // ~/.agentforge/agents
	Logs   string // ~/.agentforge/logs
	Data   string // ~/.agentforge/data
}

// ResolvePaths computes all standard paths from the home directory.
// If AGENTFORGE_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("AGENTFORGE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Agents: filepath.Join(base, "agents"),
		Logs:   filepath.Join(base, "logs"),
		Data:   filepath.Join(base, "data"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Agents, p.Logs, p.Data}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// AgentsDir returns the storage root for agent data, honoring storage.dir.
func (p Paths) AgentsDir(cfg Config) string {
	if cfg.Storage.Dir != "" {
		return cfg.Storage.Dir
	}
	return p.Agents
}

// TokenIndexDB returns the path of the SQLite token index database.
func (p Paths) TokenIndexDB() string {
	return filepath.Join(p.Data, "tokens.db")
}
