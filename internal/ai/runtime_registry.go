package ai

import (
	"fmt"
	"sort"
)

// RuntimeFactory builds a Runtime from cfg.
type RuntimeFactory func(Config) Runtime

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// NewRuntime builds the Runtime registered for cfg.Provider.
func NewRuntime(cfg Config) (Runtime, error) {
	name := cfg.Provider
	if name == "" {
		name = ProviderGroq
	}
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %v)", name, Providers())
	}
	return f(cfg), nil
}

// Providers lists the registered provider names.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	hosted := func(c Config) Runtime { return NewClient(c) }
	RegisterRuntime(ProviderGroq, hosted)
	RegisterRuntime(ProviderOpenRouter, hosted)
	RegisterRuntime(ProviderOpenAI, hosted)
	RegisterRuntime(ProviderOllama, func(c Config) Runtime { return NewOllamaClient(c) })
}
