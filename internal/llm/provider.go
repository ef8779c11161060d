package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider names accepted by NewFactory.
const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// ProviderConfig selects and tunes the backing provider.
type ProviderConfig struct {
	Provider string
	Model    string
	BaseURL  string
}

// NewFactory returns a Factory for the configured provider.
func NewFactory(cfg ProviderConfig) (Factory, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return func(_ context.Context, apiKey string) (TextGenerator, error) {
			return NewOpenAIClient(apiKey, OpenAIOptions{BaseURL: cfg.BaseURL, Model: cfg.Model, Temperature: 0.2}), nil
		}, nil
	case ProviderGroq:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = GroqBaseURL
		}
		model := cfg.Model
		if model == "" {
			model = GroqModel
		}
		return func(_ context.Context, apiKey string) (TextGenerator, error) {
			return NewOpenAIClient(apiKey, OpenAIOptions{BaseURL: baseURL, Model: model, Temperature: 0.1}), nil
		}, nil
	case ProviderGemini:
		return func(ctx context.Context, apiKey string) (TextGenerator, error) {
			return NewGeminiClient(ctx, apiKey, cfg.Model)
		}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
