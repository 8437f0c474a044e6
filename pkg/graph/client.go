// Package graph turns a paper corpus into the knowledge graph: entity
// extraction, relationship extraction, aggregation and storage.
package graph

import (
	"github.com/NimaFathima/astrobiomers/pkg/aggregate"
	"github.com/NimaFathima/astrobiomers/pkg/ai"
	"github.com/NimaFathima/astrobiomers/pkg/ner"
	"github.com/NimaFathima/astrobiomers/pkg/relation"
)

// GraphClient runs the ETL pipeline. It holds no per-run state and may be
// shared.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	entities           *ner.Extractor
	relations          *relation.Extractor
	aggregator         *aggregate.Aggregator
	aiClient           ai.GraphAIClient
	threshold          float64
	batchSize          int
	parallelAiRequests int
}

// NewGraphClientParams defines the configuration of a GraphClient.
//
// ConfidenceThreshold drops aggregated relationships below it before they
// are stored. BatchSize is the number of papers extracted and written per
// round. AIClient is optional and only used to embed abstracts for the
// paper corpus.
type NewGraphClientParams struct {
	Entities            *ner.Extractor
	Relations           *relation.Extractor
	Aggregator          *aggregate.Aggregator
	AIClient            ai.GraphAIClient
	ConfidenceThreshold float64
	BatchSize           int
	ParallelAiRequests  int
}

// NewGraphClient creates a GraphClient. A nil Relations or Aggregator gets
// the defaults; Entities is required.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		Entities:            nerExtractor,
//		ConfidenceThreshold: 0.7,
//		BatchSize:           100,
//	})
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.Entities == nil {
		return nil, errMissingExtractor
	}
	if params.Relations == nil {
		params.Relations = relation.NewExtractor(relation.NewExtractorParams{})
	}
	if params.Aggregator == nil {
		params.Aggregator = aggregate.NewAggregator(aggregate.DefaultParams())
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	if params.ParallelAiRequests <= 0 {
		params.ParallelAiRequests = 4
	}
	if params.ConfidenceThreshold < 0 {
		params.ConfidenceThreshold = 0
	}

	return &GraphClient{
		entities:           params.Entities,
		relations:          params.Relations,
		aggregator:         params.Aggregator,
		aiClient:           params.AIClient,
		threshold:          params.ConfidenceThreshold,
		batchSize:          params.BatchSize,
		parallelAiRequests: params.ParallelAiRequests,
	}, nil
}
