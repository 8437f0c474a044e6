package main

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/NimaFathima/astrobiomers/pkg/graph"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Print extraction statistics for a corpus",
	Args:  cobra.ExactArgs(1),
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

		summary := summarize(client.Extract(ctx, papers))
		if statsJSON {
			return writeJSON(cmd.OutOrStdout(), summary)
		}
		printSummary(cmd.OutOrStdout(), summary)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print statistics as JSON")
}

type extractionSummary struct {
	Papers        int            `json:"papers"`
	FailedPapers  int            `json:"failed_papers"`
	Entities      int            `json:"entities"`
	EntityTypes   map[string]int `json:"entity_types"`
	Candidates    int            `json:"candidates"`
	RelationTypes map[string]int `json:"relation_types"`
	Methods       map[string]int `json:"methods"`
	Confidence    map[string]int `json:"confidence"`
	AvgConfidence float64        `json:"avg_confidence"`
	Aggregated    int            `json:"aggregated"`
	Kept          int            `json:"kept"`
}

func summarize(ext *graph.Extraction) extractionSummary {
	s := extractionSummary{
		Papers:        len(ext.Entities.Items),
		FailedPapers:  ext.Entities.Summary.Failed,
		Entities:      ext.TotalEntities,
		EntityTypes:   make(map[string]int),
		Candidates:    ext.Statistics.Total,
		RelationTypes: make(map[string]int),
		Methods:       ext.Statistics.ByMethod,
		Confidence:    ext.Statistics.ByConfidence,
		AvgConfidence: ext.Statistics.AvgConfidence,
		Aggregated:    len(ext.Aggregated),
		Kept:          ext.Kept,
	}
	for _, pe := range ext.Entities.Items {
		for t, n := range pe.EntityTypes {
			s.EntityTypes[string(t)] += n
		}
	}
	for t, n := range ext.Statistics.ByType {
		s.RelationTypes[string(t)] = n
	}
	return s
}

func printSummary(w io.Writer, s extractionSummary) {
	fmt.Fprintf(w, "Papers:        %d (%d failed)\n", s.Papers, s.FailedPapers)
	fmt.Fprintf(w, "Entities:      %d\n", s.Entities)
	printCounts(w, s.EntityTypes)
	fmt.Fprintf(w, "Candidates:    %d (avg confidence %.2f)\n", s.Candidates, s.AvgConfidence)
	printCounts(w, s.RelationTypes)
	fmt.Fprintf(w, "Relationships: %d aggregated, %d above threshold\n", s.Aggregated, s.Kept)
}

func printCounts(w io.Writer, counts map[string]int) {
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		fmt.Fprintf(w, "  %-14s %d\n", k, counts[k])
	}
}
