package cmd

import (
	"github.com/spf13/cobra"
)

var (
	profJSON   bool
	profOutput string
)

var profileCmd = &cobra.Command{
	Use:   "profile <file|dataset>",
	Short: "Infer column types and print descriptive statistics",
	Example: `  datawise profile sales.csv
  datawise profile sales.xlsx --sheet Orders --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, _, err := loadInput(args[0])
		if err != nil {
			return err
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}
		_, p, report := eng.Describe(t)
		if profJSON {
			return emitJSON(cmd.OutOrStdout(), profOutput, p)
		}
		return emit(cmd.OutOrStdout(), profOutput, []byte(report))
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	addInputFlags(profileCmd)
	profileCmd.Flags().BoolVar(&profJSON, "json", false, "emit the profile as JSON instead of the text report")
	profileCmd.Flags().StringVarP(&profOutput, "output", "o", "", "optional path to write the result")
}
