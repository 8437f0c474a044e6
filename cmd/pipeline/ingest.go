package main

import (
	"context"

	"github.com/NimaFathima/astrobiomers/internal/app"
	"github.com/NimaFathima/astrobiomers/pkg/logger"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Extract a corpus and write it to the knowledge graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		papers, err := loadPapers(ctx, args[0])
		if err != nil {
			return err
		}

		services, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer services.Close(context.Background())

		report, err := services.GraphClient.ProcessPapers(ctx, papers, services.Graph, services.Corpus())
		if err != nil {
			return err
		}

		logger.Info(
			"[Graph] Ingest finished",
			"papers", report.Papers,
			"entities", report.Entities,
			"relationships", report.Relationships,
			"duration", report.Duration,
		)
		return writeJSON(cmd.OutOrStdout(), report)
	},
}
