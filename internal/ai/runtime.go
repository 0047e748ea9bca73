package ai

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Runtime is a chat backend.
type Runtime interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Provider identifiers.
const (
	ProviderGroq       = "groq"
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderOllama     = "ollama"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "llama-3.3-70b-versatile"

// DefaultBaseURL returns the API root of a hosted provider.
func DefaultBaseURL(provider string) string {
	switch provider {
	case ProviderOpenRouter:
		return "https://openrouter.ai/api/v1"
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	}
	return "https://api.groq.com/openai/v1"
}

// Config carries the knobs shared by all runtimes.
type Config struct {
	Provider          string
	APIKey            string
	BaseURL           string
	Host              string // ollama only
	HTTPTimeout       time.Duration
	RetryMax          int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RequestsPerMinute int
	Logger            *zap.Logger
}

func (c Config) withDefaults(retryMax int, baseDelay, maxDelay time.Duration) Config {
	if c.Provider == "" {
		c.Provider = ProviderGroq
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 60 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = retryMax
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = baseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = maxDelay
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
