package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/yassinexng/datawise/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set datawise configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "api_key: %s\n", mask(cfg.APIKey))
		fmt.Fprintf(w, "provider: %s\n", cfg.Provider)
		fmt.Fprintf(w, "model: %s\n", cfg.Model)
		if cfg.BaseURL != "" {
			fmt.Fprintf(w, "base_url: %s\n", cfg.BaseURL)
		}
		fmt.Fprintf(w, "max_tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(w, "temperature: %.3f\n", cfg.Temperature)
		fmt.Fprintf(w, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(w, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		if cfg.RequestsPerMinute > 0 {
			fmt.Fprintf(w, "requests_per_minute: %d\n", cfg.RequestsPerMinute)
		}
		if cfg.Provider == "ollama" {
			fmt.Fprintf(w, "ollama_host: %s\n", cfg.OllamaHost)
		}
		fmt.Fprintf(w, "datasets_dir: %s\n", cfg.DatasetsDir)
		fmt.Fprintf(w, "log_level: %s\n", cfg.LogLevel)
		e := cfg.Engine
		fmt.Fprintf(w, "engine.bins: %d\n", e.Bins)
		fmt.Fprintf(w, "engine.top_n: %d\n", e.TopN)
		fmt.Fprintf(w, "engine.scatter_max: %d\n", e.ScatterMax)
		fmt.Fprintf(w, "engine.seed: %d\n", e.Seed)
		fmt.Fprintf(w, "engine.correlation_decimals: %d\n", e.CorrelationDecimals)
		fmt.Fprintf(w, "engine.outlier_multiplier: %g\n", e.OutlierMultiplier)
		fmt.Fprintf(w, "engine.head_rows: %d\n", e.HeadRows)
		fmt.Fprintf(w, "engine.date_threshold: %g\n", e.DateThreshold)
		fmt.Fprintf(w, "engine.numeric_threshold: %g\n", e.NumericThreshold)
		fmt.Fprintf(w, "engine.percent_threshold: %g\n", e.PercentThreshold)
		fmt.Fprintf(w, "engine.currency_threshold: %g\n", e.CurrencyThreshold)
		if len(e.MissingTokens) > 0 {
			fmt.Fprintf(w, "engine.missing_tokens: %s\n", strings.Join(e.MissingTokens, ","))
		}
		fmt.Fprintf(w, "engine.expr_max_steps: %d\n", e.ExprMaxSteps)
		fmt.Fprintf(w, "engine.expr_timeout_ms: %d\n", e.ExprTimeoutMs)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Example: `  datawise config set api_key gsk_...
  datawise config set engine.bins 20`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
