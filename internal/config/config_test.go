package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yassinexng/datawise/internal/ai"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, k := range []string{"DATAWISE_API_KEY", "GROQ_API_KEY", "GROK_API_KEY", "DATAWISE_MODEL", "DATAWISE_ENGINE_BINS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ai.ProviderGroq, c.Provider)
	assert.Equal(t, ai.DefaultModel, c.Model)
	assert.Equal(t, 10, c.Engine.Bins)
	assert.Equal(t, int64(42), c.Engine.Seed)
	assert.Equal(t, 3, c.Engine.CorrelationDecimals)
	assert.Equal(t, 1.5, c.Engine.OutlierMultiplier)
	assert.Equal(t, filepath.Join(home, ".datawise", "datasets"), c.DatasetsDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GROK_API_KEY", "gsk_legacy")
	t.Setenv("DATAWISE_MODEL", "llama-3.1-8b-instant")
	t.Setenv("DATAWISE_ENGINE_BINS", "20")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gsk_legacy", c.APIKey)
	assert.Equal(t, "llama-3.1-8b-instant", c.Model)
	assert.Equal(t, 20, c.Engine.Bins)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GROQ_API_KEY=from_dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("GROQ_API_KEY") })
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", c.APIKey)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "cfg", "config.yaml")
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Set("model", "qwen/qwen3-32b"))
	require.NoError(t, c.Set("engine.scatter_max", "50"))
	require.NoError(t, c.Set("engine.correlation_decimals", "-1"))
	require.NoError(t, Save(c, path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen/qwen3-32b", again.Model)
	assert.Equal(t, 50, again.Engine.ScatterMax)
	assert.Equal(t, -1, again.Engine.CorrelationDecimals)
}

func TestSet_Validation(t *testing.T) {
	c := &Global{}
	assert.NoError(t, c.Set("provider", "OpenRouter"))
	assert.Equal(t, ai.ProviderOpenRouter, c.Provider)
	assert.Error(t, c.Set("provider", "acme"))
	assert.Error(t, c.Set("engine.bins", "many"))
	assert.Error(t, c.Set("temperature", "-1"))
	assert.Error(t, c.Set("nope", "1"))
	assert.NoError(t, c.Set("engine.missing_tokens", "NA,-"))
	assert.Equal(t, []string{"NA", "-"}, c.Engine.MissingTokens)
}

func TestRuntime(t *testing.T) {
	c := &Global{Provider: ai.ProviderOllama, OllamaHost: "http://h:1", HTTPTimeoutSec: 5, RetryBaseDelayMs: 100, RequestsPerMinute: 30}
	rc := c.Runtime(nil)
	assert.Equal(t, ai.ProviderOllama, rc.Provider)
	assert.Equal(t, "http://h:1", rc.Host)
	assert.Equal(t, 5*time.Second, rc.HTTPTimeout)
	assert.Equal(t, 100*time.Millisecond, rc.BaseDelay)
	assert.Equal(t, 30, rc.RequestsPerMinute)
}
