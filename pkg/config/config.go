// Package config loads and validates the intake bot configuration.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"intakebot/pkg/llm"
)

// Defaults applied when the config file omits a value.
const (
	DefaultMinMessages      = 6
	DefaultFallbackMessages = 8
	DefaultOracleTimeout    = 12 * time.Second
	DefaultPort             = 3978
	DefaultIdleEviction     = 30 * time.Minute
	DefaultMaxTranscript    = 6000
)

// Config is the root configuration for the intake bot.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Intake     IntakeConfig     `yaml:"intake"`
	Ticket     TicketConfig     `yaml:"ticket"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// OracleConfig configures the LLM backing the oracle tasks.
type OracleConfig struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	Host          string        `yaml:"host,omitempty"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxTranscript int           `yaml:"max_transcript_tokens"`
	APIKeySecret  string        `yaml:"api_key_secret,omitempty"`
}

// IntakeConfig holds the readiness thresholds.
type IntakeConfig struct {
	MinMessages      int           `yaml:"min_messages"`
	FallbackMessages int           `yaml:"fallback_messages"`
	IdleEviction     time.Duration `yaml:"idle_eviction"`
}

// TicketConfig configures the downstream ticket system.
type TicketConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	TokenSecret string `yaml:"token_secret,omitempty"`
	Mock        bool   `yaml:"mock"`
}

// ArchiveConfig configures the SQLite archive for completed conversations.
type ArchiveConfig struct {
	Path string `yaml:"path"`
}

// PrometheusConfig points the usage query service at a Prometheus server.
// Empty URL disables the usage endpoint.
type PrometheusConfig struct {
	URL string `yaml:"url,omitempty"`
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, expands, and validates a config file. Values of the form
// ${VAR} are substituted from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config populated with defaults, suitable for running
// without a config file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: DefaultPort},
		Oracle: OracleConfig{
			Provider:      llm.ProviderGemini,
			Model:         "gemini-2.0-flash",
			Timeout:       DefaultOracleTimeout,
			MaxTranscript: DefaultMaxTranscript,
		},
		Intake: IntakeConfig{
			MinMessages:      DefaultMinMessages,
			FallbackMessages: DefaultFallbackMessages,
			IdleEviction:     DefaultIdleEviction,
		},
		Ticket:  TicketConfig{Mock: true},
		Archive: ArchiveConfig{Path: "intakebot.db"},
	}
}

// Validate checks invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if !llm.IsKnownProvider(c.Oracle.Provider) {
		return fmt.Errorf("unknown oracle provider %q", c.Oracle.Provider)
	}
	if c.Oracle.Model == "" {
		return fmt.Errorf("oracle model must be set")
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle timeout must be positive")
	}
	if c.Intake.MinMessages < 2 {
		return fmt.Errorf("min_messages must be at least 2, got %d", c.Intake.MinMessages)
	}
	if c.Intake.FallbackMessages < c.Intake.MinMessages {
		return fmt.Errorf("fallback_messages (%d) must be >= min_messages (%d)",
			c.Intake.FallbackMessages, c.Intake.MinMessages)
	}
	if !c.Ticket.Mock && c.Ticket.Endpoint == "" {
		return fmt.Errorf("ticket endpoint required when mock mode is disabled")
	}
	return nil
}

// OracleAPIKey resolves the oracle API key from the secrets store using the
// configured secret name, falling back to the provider's conventional env var.
func (c *Config) OracleAPIKey() (string, error) {
	name := c.Oracle.APIKeySecret
	if name == "" {
		name = llm.APIKeyEnvVar(c.Oracle.Provider)
	}
	if name == "" {
		// Ollama needs no key.
		return "", nil
	}
	return GetSecret(name)
}

// TicketToken resolves the ticket system bearer token, if configured.
func (c *Config) TicketToken() (string, error) {
	if c.Ticket.TokenSecret == "" {
		return "", nil
	}
	return GetSecret(c.Ticket.TokenSecret)
}
