package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/yassinexng/datawise/internal/ai"
)

// Global configuration structure.
type Global struct {
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Model       string  `mapstructure:"model" yaml:"model"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`

	// HTTP/Retry configuration
	HTTPTimeoutSec    int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts  int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs  int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs   int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	DatasetsDir string `mapstructure:"datasets_dir" yaml:"datasets_dir"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Engine Engine `mapstructure:"engine" yaml:"engine"`
}

// Engine holds the profiling, charting and inference knobs.
type Engine struct {
	Bins                int      `mapstructure:"bins" yaml:"bins"`
	TopN                int      `mapstructure:"top_n" yaml:"top_n"`
	ScatterMax          int      `mapstructure:"scatter_max" yaml:"scatter_max"`
	Seed                int64    `mapstructure:"seed" yaml:"seed"`
	CorrelationDecimals int      `mapstructure:"correlation_decimals" yaml:"correlation_decimals"`
	OutlierMultiplier   float64  `mapstructure:"outlier_multiplier" yaml:"outlier_multiplier"`
	HeadRows            int      `mapstructure:"head_rows" yaml:"head_rows"`
	DateThreshold       float64  `mapstructure:"date_threshold" yaml:"date_threshold"`
	NumericThreshold    float64  `mapstructure:"numeric_threshold" yaml:"numeric_threshold"`
	PercentThreshold    float64  `mapstructure:"percent_threshold" yaml:"percent_threshold"`
	CurrencyThreshold   float64  `mapstructure:"currency_threshold" yaml:"currency_threshold"`
	MissingTokens       []string `mapstructure:"missing_tokens" yaml:"missing_tokens,omitempty"`
	ExprMaxSteps        uint64   `mapstructure:"expr_max_steps" yaml:"expr_max_steps"`
	ExprTimeoutMs       int      `mapstructure:"expr_timeout_ms" yaml:"expr_timeout_ms"`
}

// Dir returns ~/.datawise.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".datawise"), nil
}

// DefaultEngine returns the built-in engine settings.
func DefaultEngine() Engine {
	return Engine{
		Bins:                10,
		TopN:                10,
		ScatterMax:          100,
		Seed:                42,
		CorrelationDecimals: 3,
		OutlierMultiplier:   1.5,
		HeadRows:            5,
		DateThreshold:       0.5,
		NumericThreshold:    0.7,
		PercentThreshold:    0.7,
		CurrencyThreshold:   0.7,
		ExprMaxSteps:        2_000_000,
		ExprTimeoutMs:       5000,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ai.ProviderGroq)
	v.SetDefault("model", ai.DefaultModel)
	v.SetDefault("base_url", "")
	v.SetDefault("datasets_dir", "")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("requests_per_minute", 0)
	v.SetDefault("ollama_host", ai.DefaultOllamaHost)
	v.SetDefault("log_level", "warn")

	e := DefaultEngine()
	v.SetDefault("engine.bins", e.Bins)
	v.SetDefault("engine.top_n", e.TopN)
	v.SetDefault("engine.scatter_max", e.ScatterMax)
	v.SetDefault("engine.seed", e.Seed)
	v.SetDefault("engine.correlation_decimals", e.CorrelationDecimals)
	v.SetDefault("engine.outlier_multiplier", e.OutlierMultiplier)
	v.SetDefault("engine.head_rows", e.HeadRows)
	v.SetDefault("engine.date_threshold", e.DateThreshold)
	v.SetDefault("engine.numeric_threshold", e.NumericThreshold)
	v.SetDefault("engine.percent_threshold", e.PercentThreshold)
	v.SetDefault("engine.currency_threshold", e.CurrencyThreshold)
	v.SetDefault("engine.expr_max_steps", e.ExprMaxSteps)
	v.SetDefault("engine.expr_timeout_ms", e.ExprTimeoutMs)
}

// Load loads configuration from defaults, the config file, .env files and
// the environment. Precedence: env > config file > defaults; flags are
// applied by the caller.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("DATAWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api_key", "DATAWISE_API_KEY", "GROQ_API_KEY", "GROK_API_KEY")
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DatasetsDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.DatasetsDir = filepath.Join(dir, "datasets")
	}
	return &c, nil
}

// Save writes c to cfgFile, or to ~/.datawise/config.yaml when empty.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Set assigns one key from its string form. Engine keys are addressed as
// "engine.<key>".
func (c *Global) Set(key, val string) error {
	switch key {
	case "api_key":
		c.APIKey = val
	case "provider":
		p := strings.ToLower(val)
		switch p {
		case ai.ProviderGroq, ai.ProviderOpenRouter, ai.ProviderOpenAI, ai.ProviderOllama:
			c.Provider = p
		default:
			return fmt.Errorf("invalid provider: %s (use %s)", val, strings.Join(ai.Providers(), ", "))
		}
	case "model":
		c.Model = val
	case "base_url":
		c.BaseURL = val
	case "ollama_host":
		c.OllamaHost = val
	case "datasets_dir":
		c.DatasetsDir = val
	case "log_level":
		c.LogLevel = val
	case "temperature":
		return setFloat(&c.Temperature, key, val)
	case "max_tokens":
		return setInt(&c.MaxTokens, key, val)
	case "http_timeout_sec":
		return setInt(&c.HTTPTimeoutSec, key, val)
	case "retry_max_attempts":
		return setInt(&c.RetryMaxAttempts, key, val)
	case "retry_base_delay_ms":
		return setInt(&c.RetryBaseDelayMs, key, val)
	case "retry_max_delay_ms":
		return setInt(&c.RetryMaxDelayMs, key, val)
	case "requests_per_minute":
		return setInt(&c.RequestsPerMinute, key, val)
	case "engine.bins":
		return setInt(&c.Engine.Bins, key, val)
	case "engine.top_n":
		return setInt(&c.Engine.TopN, key, val)
	case "engine.scatter_max":
		return setInt(&c.Engine.ScatterMax, key, val)
	case "engine.seed":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for %s: %w", key, err)
		}
		c.Engine.Seed = i
	case "engine.correlation_decimals":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for %s: %w", key, err)
		}
		c.Engine.CorrelationDecimals = i
	case "engine.outlier_multiplier":
		return setFloat(&c.Engine.OutlierMultiplier, key, val)
	case "engine.head_rows":
		return setInt(&c.Engine.HeadRows, key, val)
	case "engine.date_threshold":
		return setFloat(&c.Engine.DateThreshold, key, val)
	case "engine.numeric_threshold":
		return setFloat(&c.Engine.NumericThreshold, key, val)
	case "engine.percent_threshold":
		return setFloat(&c.Engine.PercentThreshold, key, val)
	case "engine.currency_threshold":
		return setFloat(&c.Engine.CurrencyThreshold, key, val)
	case "engine.missing_tokens":
		c.Engine.MissingTokens = strings.Split(val, ",")
	case "engine.expr_max_steps":
		u, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for %s: %w", key, err)
		}
		c.Engine.ExprMaxSteps = u
	case "engine.expr_timeout_ms":
		return setInt(&c.Engine.ExprTimeoutMs, key, val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, val string) error {
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return fmt.Errorf("invalid non-negative int for %s: %q", key, val)
	}
	*dst = i
	return nil
}

func setFloat(dst *float64, key, val string) error {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f < 0 {
		return fmt.Errorf("invalid non-negative float for %s: %q", key, val)
	}
	*dst = f
	return nil
}

// Runtime returns the chat runtime settings.
func (c *Global) Runtime(logger *zap.Logger) ai.Config {
	return ai.Config{
		Provider:          c.Provider,
		APIKey:            c.APIKey,
		BaseURL:           c.BaseURL,
		Host:              c.OllamaHost,
		HTTPTimeout:       time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:          c.RetryMaxAttempts,
		BaseDelay:         time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		RequestsPerMinute: c.RequestsPerMinute,
		Logger:            logger,
	}
}
