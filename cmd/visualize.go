package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yassinexng/datawise/internal/chart"
)

var visOutput string

type visualizeResult struct {
	Charts  []chart.Spec `json:"charts"`
	Preview [][]string   `json:"preview"`
}

var visualizeCmd = &cobra.Command{
	Use:   "visualize <file|dataset>",
	Short: "Emit chart payloads and a preview window as JSON",
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
		a := eng.Analyze(t)
		charts := a.Charts
		if charts == nil {
			charts = []chart.Spec{}
		}
		return emitJSON(cmd.OutOrStdout(), visOutput, visualizeResult{Charts: charts, Preview: a.Preview})
	},
}

func init() {
	rootCmd.AddCommand(visualizeCmd)
	addInputFlags(visualizeCmd)
	visualizeCmd.Flags().StringVarP(&visOutput, "output", "o", "", "optional path to write the JSON")
}
