// Package llm provides the text-completion backends used to classify
// citation edges.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/matsen/citethreads/internal/config"
	"github.com/matsen/citethreads/internal/logger"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderClaude = "claude"
	ProviderNone   = "none"
)

// ErrNotConfigured is returned by New when no usable backend is configured.
var ErrNotConfigured = errors.New("LLM not configured")

// Params tunes a single completion call. Zero values leave the backend's
// defaults in place.
type Params struct {
	Temperature float32
	MaxTokens   int
}

// Completer turns a prompt into free text.
type Completer interface {
	Complete(ctx context.Context, prompt string, params Params) (string, error)
}

// New builds the completer selected by cfg.Provider. It returns
// ErrNotConfigured for the "none" provider and for an OpenAI-compatible
// provider without an API key.
func New(cfg config.LLMConfig, log *logger.Logger) (Completer, error) {
	switch cfg.Provider {
	case "", ProviderNone:
		return nil, ErrNotConfigured
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: no API key for %s", ErrNotConfigured, cfg.BaseURL)
		}
		return NewOpenAI(cfg.APIKey,
			WithOpenAIBaseURL(cfg.BaseURL),
			WithOpenAIModel(cfg.Model),
			WithOpenAILogger(log),
		), nil
	case ProviderOllama:
		opts := []OllamaOption{WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		return NewOllama(opts...), nil
	case ProviderClaude:
		return NewClaude(cfg.Model, cfg.Timeout), nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
}
