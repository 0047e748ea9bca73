package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yassinexng/datawise/internal/ai"
	"github.com/yassinexng/datawise/internal/engine"
	"github.com/yassinexng/datawise/internal/narrative"
	"github.com/yassinexng/datawise/internal/store"
	"github.com/yassinexng/datawise/internal/table"
	"github.com/yassinexng/datawise/internal/utils"
)

// Flags shared by the commands that read a dataset.
var (
	inSheet      string
	inTimeoutSec int
)

func addInputFlags(c *cobra.Command) {
	c.Flags().StringVar(&inSheet, "sheet", "", "XLSX: sheet name to read (default first sheet)")
}

func addTimeoutFlag(c *cobra.Command) {
	c.Flags().IntVar(&inTimeoutSec, "timeout-sec", 180, "request timeout in seconds")
}

func newEngine() (*engine.Engine, error) {
	c, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	return engine.New(c.Engine, logger), nil
}

func openStore() (*store.Store, error) {
	c, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	return store.New(c.DatasetsDir, logger), nil
}

// loadInput reads ref as a file path when one exists, otherwise as a stored
// dataset id or name. It returns the raw table and a display name.
func loadInput(ref string) (*table.Table, string, error) {
	eng, err := newEngine()
	if err != nil {
		return nil, "", err
	}
	if info, statErr := os.Stat(ref); statErr == nil && !info.IsDir() {
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, "", fmt.Errorf("read file: %w", err)
		}
		t, err := eng.LoadSheet(ref, data, inSheet)
		if err != nil {
			return nil, "", err
		}
		return t, ref, nil
	}
	st, err := openStore()
	if err != nil {
		return nil, "", err
	}
	d, err := st.Get(ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", fmt.Errorf("%q is neither a file nor a stored dataset", ref)
		}
		return nil, "", err
	}
	t, err := st.Table(d.ID, cfg.Engine.MissingTokens)
	if err != nil {
		return nil, "", err
	}
	return t, d.Name, nil
}

func newSummarizer() (*narrative.Summarizer, error) {
	c, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	rt, err := ai.NewRuntime(c.Runtime(logger))
	if err != nil {
		return nil, err
	}
	return narrative.New(rt, narrative.Options{
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}, logger), nil
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	sec := inTimeoutSec
	if sec <= 0 {
		sec = 180
	}
	return context.WithTimeout(cmd.Context(), time.Duration(sec)*time.Second)
}

// explainAIError adds a user-facing hint to chat failures.
func explainAIError(err error) error {
	if err == nil {
		return nil
	}
	provider, model := ai.ProviderGroq, ai.DefaultModel
	if cfg != nil {
		provider, model = cfg.Provider, cfg.Model
	}
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.Is(err, ai.ErrMissingAPIKey):
		return fmt.Errorf("no API key: set GROQ_API_KEY (or DATAWISE_API_KEY) or run 'datawise config set api_key <key>': %w", err)
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and the host is correct (config 'ollama_host'): %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: check api_key in config (~/.datawise/config.yaml): %w", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s': %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). See 'datawise models list --remote': %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try a smaller dataset or max_tokens: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	}
	return err
}

// emit writes data to path, or to w when path is empty.
func emit(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Wrote %s\n", path)
	return nil
}

func emitJSON(w io.Writer, path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return emit(w, path, append(b, '\n'))
}

// printTable renders t as aligned columns; Missing cells show as "NaN".
func printTable(w io.Writer, t *table.Table) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Names(), "\t"))
	for i := 0; i < t.NumRows(); i++ {
		cells := make([]string, t.NumCols())
		for j, v := range t.Row(i) {
			if v.IsMissing() {
				cells[j] = "NaN"
				continue
			}
			cells[j] = strings.NewReplacer("\t", " ", "\n", " ").Replace(v.String())
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}
