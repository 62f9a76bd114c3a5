package llm

import (
	"context"
	"fmt"
	"time"

	"gemsmith/internal/config"
)

// NewFromConfig builds the configured completion client.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, timeout time.Duration) (Client, error) {
	switch cfg.Provider {
	case "", "gemini":
		// Keep the interface value nil on failure so callers can use a
		// plain nil check to mean "no collaborator".
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai", "openai_compat":
		conf := DefaultOpenAICompatConfig(cfg.APIKey)
		conf.Timeout = timeout
		if cfg.BaseURL != "" {
			conf.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			conf.Model = cfg.Model
		}
		return NewOpenAICompatClient(conf), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
