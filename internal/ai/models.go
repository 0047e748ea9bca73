package ai

import "sort"

// ModelInfo describes a chat model's context window.
type ModelInfo struct {
	Name          string `json:"name" yaml:"name"`
	Provider      string `json:"provider" yaml:"provider"`
	ContextTokens int    `json:"context_tokens" yaml:"context_tokens"`
}

// fallbackContextTokens is assumed for models missing from the catalog.
const fallbackContextTokens = 8192

var models = map[string]ModelInfo{
	"llama-3.3-70b-versatile":                   {Provider: ProviderGroq, ContextTokens: 131072},
	"llama-3.1-8b-instant":                      {Provider: ProviderGroq, ContextTokens: 131072},
	"openai/gpt-oss-120b":                       {Provider: ProviderGroq, ContextTokens: 131072},
	"openai/gpt-oss-20b":                        {Provider: ProviderGroq, ContextTokens: 131072},
	"meta-llama/llama-4-scout-17b-16e-instruct": {Provider: ProviderGroq, ContextTokens: 131072},
	"qwen/qwen3-32b":                            {Provider: ProviderGroq, ContextTokens: 131072},
	"openai/gpt-4o-mini":                        {Provider: ProviderOpenRouter, ContextTokens: 128000},
	"deepseek/deepseek-r1:free":                 {Provider: ProviderOpenRouter, ContextTokens: 128000},
	"gpt-4o-mini":                               {Provider: ProviderOpenAI, ContextTokens: 128000},
	"llama3.1:8b":                               {Provider: ProviderOllama, ContextTokens: 8192},
	"qwen2.5:7b":                                {Provider: ProviderOllama, ContextTokens: 32768},
	"mistral:7b-instruct":                       {Provider: ProviderOllama, ContextTokens: 8192},
}

func init() {
	for k, v := range models {
		v.Name = k
		models[k] = v
	}
}

// LookupModel returns the catalog entry for name.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// ContextTokens returns the context window of name, or a conservative
// default for unknown models.
func ContextTokens(name string) int {
	if mi, ok := models[name]; ok && mi.ContextTokens > 0 {
		return mi.ContextTokens
	}
	return fallbackContextTokens
}

// MergeCatalog adds or overrides catalog entries.
func MergeCatalog(m map[string]ModelInfo) {
	for k, v := range m {
		v.Name = k
		models[k] = v
	}
}

// Catalog returns the catalog sorted by provider then name.
func Catalog() []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, v := range models {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Name < out[j].Name
	})
	return out
}
