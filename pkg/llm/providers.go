package llm

// Supported oracle providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// KnownProviders lists every provider the factory can construct.
//
//nolint:gochecknoglobals // Static lookup table
var KnownProviders = []string{ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOllama}

// IsKnownProvider reports whether name is a supported provider.
func IsKnownProvider(name string) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}

// APIKeyEnvVar returns the environment variable conventionally holding the
// API key for a provider. Ollama needs no key.
func APIKeyEnvVar(provider string) string {
	switch provider {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}
