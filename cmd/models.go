package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yassinexng/datawise/internal/ai"
)

// modelLister is implemented by runtimes that can enumerate their models.
type modelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalog or benchmark provider models",
	Example: `  datawise models list
  datawise models list --remote
  datawise models probe llama-3.1-8b-instant qwen/qwen3-32b`,
}

var modelsRemote bool

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models, or the provider's live model list with --remote",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if !modelsRemote {
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tPROVIDER\tCONTEXT")
			for _, m := range ai.Catalog() {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", m.Name, m.Provider, m.ContextTokens)
			}
			return tw.Flush()
		}
		ids, err := remoteModels(cmd)
		if err != nil {
			return explainAIError(err)
		}
		for _, id := range ids {
			fmt.Fprintln(w, id)
		}
		return nil
	},
}

var (
	probePrompt    string
	probeMaxTokens int
)

type probeResult struct {
	Model            string
	Elapsed          time.Duration
	PromptTokens     int
	CompletionTokens int
	Err              error
}

func (r probeResult) tokensPerSec() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.CompletionTokens) / r.Elapsed.Seconds()
}

var modelsProbeCmd = &cobra.Command{
	Use:   "probe [model...]",
	Short: "Send a short prompt to each model and report latency and throughput",
	Long:  "Sends a short prompt to each named model, or to every model the provider lists when none is named.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		rt, err := ai.NewRuntime(c.Runtime(logger))
		if err != nil {
			return err
		}
		models := args
		if len(models) == 0 {
			if models, err = remoteModels(cmd); err != nil {
				return explainAIError(err)
			}
		}
		w := cmd.OutOrStdout()
		var results []probeResult
		for _, m := range models {
			fmt.Fprintf(w, "Testing: %s ...\n", m)
			results = append(results, probeModel(cmd, rt, m))
		}

		sort.SliceStable(results, func(i, j int) bool {
			if (results[i].Err == nil) != (results[j].Err == nil) {
				return results[i].Err == nil
			}
			return results[i].Elapsed < results[j].Elapsed
		})
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tSTATUS\tTIME\tPROMPT\tCOMPLETION\tTOK/S")
		ok := 0
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(tw, "%s\t✗ %s\t\t\t\t\n", r.Model, firstLine(r.Err.Error()))
				continue
			}
			ok++
			fmt.Fprintf(tw, "%s\t✓\t%.2fs\t%d\t%d\t%.1f\n", r.Model, r.Elapsed.Seconds(), r.PromptTokens, r.CompletionTokens, r.tokensPerSec())
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if ok == 0 && len(results) > 0 {
			return errors.New("no model answered")
		}
		return nil
	},
}

func probeModel(cmd *cobra.Command, rt ai.Runtime, model string) probeResult {
	ctx, cancel := requestContext(cmd)
	defer cancel()
	start := time.Now()
	resp, err := rt.Chat(ctx, ai.ChatRequest{
		Model:     model,
		Messages:  []ai.Message{{Role: "user", Content: probePrompt}},
		MaxTokens: probeMaxTokens,
	})
	r := probeResult{Model: model, Elapsed: time.Since(start), Err: err}
	if err != nil {
		logger.Debug("probe failed", zap.String("model", model), zap.Error(err))
		return r
	}
	r.PromptTokens = resp.Usage.PromptTokens
	r.CompletionTokens = resp.Usage.CompletionTokens
	return r
}

func remoteModels(cmd *cobra.Command) ([]string, error) {
	c, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	rt, err := ai.NewRuntime(c.Runtime(logger))
	if err != nil {
		return nil, err
	}
	lister, ok := rt.(modelLister)
	if !ok {
		return nil, fmt.Errorf("provider %s cannot list models; name the models to use", c.Provider)
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()
	ids, err := lister.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsProbeCmd)

	modelsListCmd.Flags().BoolVar(&modelsRemote, "remote", false, "ask the provider for its live model list")
	addTimeoutFlag(modelsListCmd)

	modelsProbeCmd.Flags().StringVar(&probePrompt, "prompt", "In exactly one sentence, explain what a neural network is.", "prompt sent to each model")
	modelsProbeCmd.Flags().IntVar(&probeMaxTokens, "max-tokens", 200, "max tokens per reply")
	addTimeoutFlag(modelsProbeCmd)
}
