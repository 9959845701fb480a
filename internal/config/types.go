package config

// Config is the root configuration for agentforge.
type Config struct {
	Server     ServerConfig     `yaml:"server,omitempty" toml:"server,omitempty"`
	Storage    StorageConfig    `yaml:"storage,omitempty" toml:"storage,omitempty"`
	Deployment DeploymentConfig `yaml:"deployment,omitempty" toml:"deployment,omitempty"`
	LLM        LLMConfig        `yaml:"llm,omitempty" toml:"llm,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty" toml:"logging,omitempty"`
	Hooks      HooksConfig      `yaml:"hooks,omitempty" toml:"hooks,omitempty"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Port           int        `yaml:"port,omitempty" toml:"port,omitempty"`
	Bind           string     `yaml:"bind,omitempty" toml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string     `yaml:"customBindHost,omitempty" toml:"customBindHost,omitempty"`
	TLS            TLSConfig  `yaml:"tls,omitempty" toml:"tls,omitempty"`
	CORS           CORSConfig `yaml:"cors,omitempty" toml:"cors,omitempty"`
	// TrustProxy honors X-Forwarded-For and X-Real-IP. Enable only behind
	// a reverse proxy that overwrites them.
	TrustProxy bool `yaml:"trustProxy,omitempty" toml:"trustProxy,omitempty"`
}

// TLSConfig configures TLS for the API server.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty" toml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty" toml:"keyPath,omitempty"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty" toml:"allowedOrigins,omitempty"`
}

// StorageConfig locates agent data on disk.
type StorageConfig struct {
	Dir        string `yaml:"dir,omitempty" toml:"dir,omitempty"`               // defaults to Paths.Agents
	TokenIndex string `yaml:"tokenIndex,omitempty" toml:"tokenIndex,omitempty"` // "memory" | "sqlite"
}

// DeploymentConfig controls API token issuance.
type DeploymentConfig struct {
	TokenTTLHours int    `yaml:"tokenTtlHours" toml:"tokenTtlHours"` // 0: tokens never expire
	BaseURL       string `yaml:"baseUrl,omitempty" toml:"baseUrl,omitempty"` // public URL used in endpoints; derived from server when empty
}

// LLMConfig selects the model provider used to execute agents.
type LLMConfig struct {
	Provider       string   `yaml:"provider,omitempty" toml:"provider,omitempty"` // "openai" | "claude" | "ollama" | "mock"
	APIKey         string   `yaml:"apiKey,omitempty" toml:"apiKey,omitempty"`
	Model          string   `yaml:"model,omitempty" toml:"model,omitempty"`
	Fallbacks      []string `yaml:"fallbacks,omitempty" toml:"fallbacks,omitempty"` // models tried in order on retryable errors
	Endpoint       string   `yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Temperature    float64  `yaml:"temperature,omitempty" toml:"temperature,omitempty"`
	MaxTokens      int      `yaml:"maxTokens,omitempty" toml:"maxTokens,omitempty"`
	TimeoutSeconds int      `yaml:"timeoutSeconds,omitempty" toml:"timeoutSeconds,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty" toml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty" toml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty" toml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// HooksConfig maps lifecycle event names to shell commands.
type HooksConfig struct {
	Events map[string][]HookEntry `yaml:"events,omitempty" toml:"events,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command" toml:"command"`
	Timeout int    `yaml:"timeout,omitempty" toml:"timeout,omitempty"` // milliseconds
}
