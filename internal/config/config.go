package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultPort          = 8000
	DefaultTokenTTLHours = 24
	DefaultProvider      = "openai"
	DefaultModel         = "llama-3.3-70b-versatile"
	DefaultEndpoint      = "https://api.groq.com/openai/v1"
	DefaultTemperature   = 0.1
	DefaultMaxTokens     = 4096
	DefaultLLMTimeout    = 120
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: DefaultPort,
			Bind: "loopback",
		},
		Storage: StorageConfig{
			TokenIndex: "memory",
		},
		Deployment: DeploymentConfig{
			TokenTTLHours: DefaultTokenTTLHours,
		},
		LLM: LLMConfig{
			Provider:       DefaultProvider,
			Model:          DefaultModel,
			Endpoint:       DefaultEndpoint,
			Temperature:    DefaultTemperature,
			MaxTokens:      DefaultMaxTokens,
			TimeoutSeconds: DefaultLLMTimeout,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// ListenHost returns the host the server binds to.
func (c ServerConfig) ListenHost() string {
	switch c.Bind {
	case "lan":
		return "0.0.0.0"
	case "custom":
		return c.CustomBindHost
	default:
		return "127.0.0.1"
	}
}

// PublicBaseURL returns the externally visible base URL for API endpoints.
func (c Config) PublicBaseURL() string {
	if c.Deployment.BaseURL != "" {
		return c.Deployment.BaseURL
	}
	scheme := "http"
	if c.Server.TLS.Enabled {
		scheme = "https"
	}
	host := c.Server.ListenHost()
	if host == "127.0.0.1" || host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, c.Server.Port)
}
