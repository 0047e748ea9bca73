package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	sugJSON   bool
	sugOutput string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <file|dataset>",
	Short: "Ask the chat model for cleaning suggestions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, _, err := loadInput(args[0])
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
		_, _, report := eng.Describe(t)
		ctx, cancel := requestContext(cmd)
		defer cancel()
		sugs, err := sum.Suggestions(ctx, report)
		if err != nil {
			return explainAIError(err)
		}
		if sugJSON || sugOutput != "" {
			return emitJSON(cmd.OutOrStdout(), sugOutput, sugs)
		}
		for i, s := range sugs {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, s.SuggestedChange)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	addInputFlags(suggestCmd)
	addTimeoutFlag(suggestCmd)
	suggestCmd.Flags().BoolVar(&sugJSON, "json", false, "emit suggestions as JSON")
	suggestCmd.Flags().StringVarP(&sugOutput, "output", "o", "", "optional path to write the JSON")
}
