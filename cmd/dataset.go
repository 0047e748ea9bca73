package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var datasetCmd = &cobra.Command{
	Use:     "dataset",
	Aliases: []string{"ds"},
	Short:   "Manage stored datasets",
}

var (
	dsAddName   string
	dsExportOut string
)

var datasetAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Load a file and store it as a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("stat file: %w", err)
		}
		t, _, err := loadInput(file)
		if err != nil {
			return err
		}
		name := dsAddName
		if name == "" {
			base := filepath.Base(file)
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		d, err := st.Create(name, filepath.Base(file), t)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Dataset added: %s (%s, %d rows × %d columns)\n", d.Name, d.ID, d.Rows, len(d.Columns))
		return nil
	},
}

var datasetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored datasets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		list, err := st.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(no datasets)")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tROWS\tCOLUMNS\tUPDATED")
		for _, d := range list {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", d.ID[:8], d.Name, d.Rows, len(d.Columns), d.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var datasetShowCmd = &cobra.Command{
	Use:   "show <dataset>",
	Short: "Show a dataset's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		d, err := st.Get(args[0])
		if err != nil {
			return err
		}
		return emitJSON(cmd.OutOrStdout(), "", d)
	},
}

var datasetExportCmd = &cobra.Command{
	Use:   "export <dataset>",
	Short: "Write a dataset's content as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		d, err := st.Get(args[0])
		if err != nil {
			return err
		}
		b, err := st.Content(d.ID)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), dsExportOut, b)
	},
}

var datasetRemoveCmd = &cobra.Command{
	Use:     "rm <dataset>",
	Aliases: []string{"delete"},
	Short:   "Delete a stored dataset",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		d, err := st.Get(args[0])
		if err != nil {
			return err
		}
		if err := st.Delete(d.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted dataset '%s'\n", d.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetAddCmd, datasetListCmd, datasetShowCmd, datasetExportCmd, datasetRemoveCmd)
	addInputFlags(datasetAddCmd)
	datasetAddCmd.Flags().StringVarP(&dsAddName, "name", "n", "", "dataset name (default: file name without extension)")
	datasetExportCmd.Flags().StringVarP(&dsExportOut, "output", "o", "", "optional path to write the CSV")
}
