package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yassinexng/datawise/internal/clean"
)

var (
	cleanOps          []string
	cleanInstructions []string
	cleanOutput       string
	cleanSave         bool
	cleanSaveAs       string
	cleanQuiet        bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file|dataset>",
	Short: "Run cleaning operations and write the cleaned table as CSV",
	Long: `Runs cleaning operations in the order given. Built-in operations are
normalize_types, remove_duplicates and fill_missing (aliases item1, item2, item3).
Each --op opaque consumes the next --instruction; instructions left over are
appended as opaque operations. Opaque operations ask the chat model for a
transformation and apply it in a sandbox.`,
	Example: `  datawise clean sales.csv --op normalize_types --op remove_duplicates -o clean.csv
  datawise clean sales --op fill_missing --instruction "drop rows where amount is negative" --save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := buildOperations(cleanOps, cleanInstructions)
		if err != nil {
			return err
		}
		if cleanSave && cleanSaveAs != "" {
			return fmt.Errorf("use only one of --save or --save-as")
		}
		t, _, err := loadInput(args[0])
		if err != nil {
			return err
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}
		var planner clean.Planner
		for _, op := range ops {
			if op.Canonical() == clean.Opaque {
				sum, err := newSummarizer()
				if err != nil {
					return err
				}
				planner = sum
				break
			}
		}

		ctx, cancel := requestContext(cmd)
		defer cancel()
		res, runErr := eng.Clean(ctx, t, ops, planner)
		if !cleanQuiet && res != nil {
			printSteps(cmd.ErrOrStderr(), res.Steps)
		}
		if runErr != nil {
			return explainAIError(runErr)
		}

		switch {
		case cleanSave:
			st, err := openStore()
			if err != nil {
				return err
			}
			d, err := st.Get(args[0])
			if err != nil {
				return fmt.Errorf("--save needs a stored dataset: %w", err)
			}
			if _, err := st.UpdateContent(d.ID, res.Table); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated dataset '%s' (%d rows)\n", d.Name, res.Table.NumRows())
			return nil
		case cleanSaveAs != "":
			st, err := openStore()
			if err != nil {
				return err
			}
			d, err := st.Create(cleanSaveAs, args[0], res.Table)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved dataset '%s' (%s)\n", d.Name, d.ID)
			return nil
		}
		out, err := eng.Export(res.Table)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), cleanOutput, out)
	},
}

// buildOperations pairs each opaque op with the next instruction and appends
// leftover instructions as opaque ops.
func buildOperations(ids, instructions []string) ([]clean.Operation, error) {
	if len(ids) == 0 && len(instructions) == 0 {
		return nil, errors.New("specify at least one --op or --instruction")
	}
	var ops []clean.Operation
	next := 0
	for _, id := range ids {
		op := clean.Operation{ID: id}
		if op.Canonical() == clean.Opaque {
			if next >= len(instructions) {
				return nil, fmt.Errorf("--op %s needs a matching --instruction", id)
			}
			op.Instruction = instructions[next]
			next++
		}
		ops = append(ops, op)
	}
	for _, ins := range instructions[next:] {
		if strings.TrimSpace(ins) == "" {
			continue
		}
		ops = append(ops, clean.Operation{ID: clean.Opaque, Instruction: ins})
	}
	return ops, nil
}

func printSteps(w io.Writer, steps []clean.StepReport) {
	for _, s := range steps {
		line := fmt.Sprintf("✓ %s: rows %d → %d, cells changed %d", s.Op, s.RowsBefore, s.RowsAfter, s.CellsChanged)
		if len(s.TypeChanges) > 0 {
			line += ", types: " + strings.Join(s.TypeChanges, "; ")
		}
		fmt.Fprintf(w, "%s (%s)\n", line, s.Duration.Round(time.Microsecond))
	}
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	addInputFlags(cleanCmd)
	addTimeoutFlag(cleanCmd)
	cleanCmd.Flags().StringArrayVar(&cleanOps, "op", nil, "cleaning operation (repeatable, applied in order)")
	cleanCmd.Flags().StringArrayVar(&cleanInstructions, "instruction", nil, "free-form transformation for an opaque operation (repeatable)")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "optional path to write the cleaned CSV")
	cleanCmd.Flags().BoolVar(&cleanSave, "save", false, "replace the stored dataset's content with the result")
	cleanCmd.Flags().StringVar(&cleanSaveAs, "save-as", "", "store the result as a new dataset with this name")
	cleanCmd.Flags().BoolVar(&cleanQuiet, "quiet", false, "suppress per-step reports")
}
