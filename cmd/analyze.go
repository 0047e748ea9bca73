package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yassinexng/datawise/internal/chart"
	"github.com/yassinexng/datawise/internal/narrative"
)

var (
	anaQuestion string
	anaOutput   string
)

type analyzeResult struct {
	Dataset  string              `json:"dataset"`
	Findings []narrative.Finding `json:"analysis,omitempty"`
	Answer   string              `json:"answer,omitempty"`
	Charts   []chart.Spec        `json:"charts"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|dataset>",
	Short: "Ask the chat model for an exploratory summary while building charts",
	Example: `  datawise analyze sales.csv
  datawise analyze sales --question "Which region sells the most?"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, name, err := loadInput(args[0])
		if err != nil {
			return err
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}
		sum, err := newSummarizer()
		if err != nil {
			return err
		}
		typed, _, report := eng.Describe(t)

		ctx, cancel := requestContext(cmd)
		defer cancel()
		res := analyzeResult{Dataset: name}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if anaQuestion != "" {
				ans, err := sum.Ask(gctx, report, anaQuestion)
				res.Answer = ans
				return err
			}
			findings, err := sum.InitialEDA(gctx, report)
			res.Findings = findings
			return err
		})
		g.Go(func() error {
			res.Charts = eng.Charts(typed)
			return nil
		})
		if err := g.Wait(); err != nil {
			return explainAIError(err)
		}
		if res.Charts == nil {
			res.Charts = []chart.Spec{}
		}
		logger.Debug("analyze finished", zap.String("dataset", name), zap.Int("charts", len(res.Charts)))
		return emitJSON(cmd.OutOrStdout(), anaOutput, res)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	addInputFlags(analyzeCmd)
	addTimeoutFlag(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaQuestion, "question", "q", "", "ask a question about the dataset instead of the default summary")
	analyzeCmd.Flags().StringVarP(&anaOutput, "output", "o", "", "optional path to write the JSON")
}
