package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/yassinexng/datawise/internal/config"
	"github.com/yassinexng/datawise/internal/logging"
)

var (
	cfgFile string
	debug   bool
	// Runtime flags (override config if set)
	flagProvider         string
	flagModel            string
	flagOllamaHost       string
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int
	flagRequestsPerMin   int

	// Loaded configuration and process logger
	cfg    *cfgpkg.Global
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "datawise",
	Short: "datawise: profile, chart and clean tabular data",
	Long: `datawise loads CSV/TSV/XLSX files, infers column types, profiles and charts them,
runs cleaning pipelines and asks a chat model for summaries and suggested fixes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.datawise/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVar(&flagProvider, "provider", "", "chat provider: groq|openrouter|openai|ollama (overrides config)")
	pf.StringVar(&flagModel, "model", "", "chat model (overrides config)")
	pf.StringVar(&flagOllamaHost, "ollama-host", "", "Ollama host, e.g. http://127.0.0.1:11434 (overrides config)")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	pf.IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	pf.IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	pf.IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
	pf.IntVar(&flagRequestsPerMin, "rpm", 0, "throttle chat requests to this many per minute (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands that need config report it themselves
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("provider") && flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if f.Changed("model") && flagModel != "" {
		cfg.Model = flagModel
	}
	if f.Changed("ollama-host") && flagOllamaHost != "" {
		cfg.OllamaHost = flagOllamaHost
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	if f.Changed("rpm") && flagRequestsPerMin > 0 {
		cfg.RequestsPerMinute = flagRequestsPerMin
	}

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	l, err := logging.New(level, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v; logging disabled\n", err)
		logger = zap.NewNop()
		return
	}
	logger = l
}

// loadedConfig returns the loaded configuration or the load error.
func loadedConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}
