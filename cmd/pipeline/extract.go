package main

import (
	"os"

	"github.com/spf13/cobra"
)

var extractOutput string

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the entities and relationships extracted from a corpus",
	Long: `Run entity and relationship extraction without writing anything to the
graph. The result is printed as JSON, or written to --output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		papers, err := loadPapers(ctx, args[0])
		if err != nil {
			return err
		}
		client, err := offlineGraphClient()
		if err != nil {
			return err
		}
		ext := client.Extract(ctx, papers)

		if extractOutput == "" {
			return writeJSON(cmd.OutOrStdout(), ext)
		}
		f, err := os.Create(extractOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		return writeJSON(f, ext)
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "write the JSON result to this file")
}
