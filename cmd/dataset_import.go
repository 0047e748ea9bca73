package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dsImportPrefix string
	dsImportQuiet  bool
)

var datasetImportCmd = &cobra.Command{
	Use:   "import <files...>",
	Short: "Store many CSV/TSV/XLSX files as datasets, with progress",
	Example: `  datawise dataset import "exports/*.csv"
  datawise dataset import a.csv b.xlsx --prefix q3-`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		existing, err := st.List()
		if err != nil {
			return err
		}
		taken := make(map[string]bool, len(existing))
		for _, d := range existing {
			taken[d.Name] = true
		}

		w := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			if !dsImportQuiet {
				fmt.Fprintf(w, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			t, _, err := loadInput(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			base := filepath.Base(path)
			name := dsImportPrefix + strings.TrimSuffix(base, filepath.Ext(base))
			if taken[name] {
				idx := 2
				for taken[fmt.Sprintf("%s__%d", name, idx)] {
					idx++
				}
				cand := fmt.Sprintf("%s__%d", name, idx)
				if !dsImportQuiet {
					fmt.Fprintf(w, "⚠ Dataset '%s' exists, storing as '%s'.\n", name, cand)
				}
				name = cand
			}
			d, err := st.Create(name, base, t)
			if err != nil {
				return err
			}
			taken[name] = true
			logger.Debug("imported dataset", zap.String("file", path), zap.String("id", d.ID))
			if !dsImportQuiet {
				fmt.Fprintf(w, "✓ Stored '%s' (%d rows × %d columns)\n", d.Name, d.Rows, len(d.Columns))
			}
		}
		return nil
	},
}

// expandInputs resolves globs, keeps literal paths that exist, drops
// duplicates and sorts the result.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func init() {
	datasetCmd.AddCommand(datasetImportCmd)
	addInputFlags(datasetImportCmd)
	datasetImportCmd.Flags().StringVar(&dsImportPrefix, "prefix", "", "prefix added to every dataset name")
	datasetImportCmd.Flags().BoolVar(&dsImportQuiet, "quiet", false, "suppress progress and non-essential output")
}
