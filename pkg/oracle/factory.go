package oracle

import (
	"fmt"
	"time"

	"intakebot/pkg/llm"
	"intakebot/pkg/llm/anthropic"
	"intakebot/pkg/llm/gemini"
	"intakebot/pkg/llm/ollama"
	"intakebot/pkg/llm/openai"
	"intakebot/pkg/logx"
)

// NewClient builds the LLM client for the configured provider and wraps it
// with the oracle's middleware: a hard timeout per call and outcome logging.
// There is deliberately no retry layer; failed calls fall through to the
// deterministic fallbacks.
func NewClient(cfg llm.Config, timeout time.Duration) (llm.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid oracle config: %w", err)
	}

	var base llm.Client
	switch cfg.Provider {
	case llm.ProviderGemini:
		base = gemini.NewClientWithModel(cfg.APIKey, cfg.ModelName)
	case llm.ProviderOpenAI:
		base = openai.NewClientWithModel(cfg.APIKey, cfg.ModelName)
	case llm.ProviderAnthropic:
		base = anthropic.NewClientWithModel(cfg.APIKey, cfg.ModelName)
	case llm.ProviderOllama:
		base = ollama.NewClientWithModel(cfg.Host, cfg.ModelName)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}

	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return llm.Chain(base,
		llm.TimeoutMiddleware(timeout),
		llm.LoggingMiddleware(logx.NewLogger("llm")),
	), nil
}
