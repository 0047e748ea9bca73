package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yassinexng/datawise/internal/engine"
)

var (
	prevGrid  bool
	prevTyped bool
)

var previewCmd = &cobra.Command{
	Use:   "preview <file|dataset>",
	Short: "Print the first rows and columns of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, name, err := loadInput(args[0])
		if err != nil {
			return err
		}
		if prevTyped {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			t = eng.Normalize(t)
		}
		window := engine.Preview(t)
		if prevGrid {
			window = engine.Grid(t)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s: %d rows × %d columns\n\n", name, t.NumRows(), t.NumCols())
		printTable(w, window)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	addInputFlags(previewCmd)
	previewCmd.Flags().BoolVar(&prevGrid, "grid", false, "show the larger data-grid window")
	previewCmd.Flags().BoolVar(&prevTyped, "typed", false, "infer and coerce column types before printing")
}
