package embedder

import (
	"fmt"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	// Provider is one of jina, openai, ollama, local. Empty picks one from
	// the available API keys.
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	CacheSize int
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch DetectProvider(cfg) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cache)
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cache), nil
	case ProviderLocal:
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider New would build for cfg.
// An explicit provider wins; otherwise an API key selects OpenAI, and
// without one the local provider is used.
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.APIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
