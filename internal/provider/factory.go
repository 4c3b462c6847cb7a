package provider

import (
	"fmt"

	"github.com/scrypster/shoprec/internal/config"
)

// NewEmbeddingGenerator creates the embedding client selected by cfg and
// wraps it with the resilience policy (retry, quota cooldown, rate limit).
func NewEmbeddingGenerator(cfg config.ProviderConfig) (*ResilientGenerator, error) {
	var inner EmbeddingGenerator

	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: openai provider selected but no API key configured", ErrConfig)
		}
		inner = NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIEmbeddingModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.Timeout,
		})
	case "ollama", "":
		inner = NewOllamaClient(OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaEmbeddingModel,
			Timeout: cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}

	return NewResilientGenerator(inner, ResilientConfig{
		RequestsPerSec: cfg.RequestsPerSec,
		QuotaCooldown:  cfg.QuotaCooldown,
	}), nil
}
