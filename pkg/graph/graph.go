package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NimaFathima/astrobiomers/pkg/aggregate"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/metrics"
	"github.com/NimaFathima/astrobiomers/pkg/relation"
	"github.com/NimaFathima/astrobiomers/pkg/store"
)

var errMissingExtractor = errors.New("graph client needs an entity extractor")

// Extraction is the in-memory result of running the extractors over a set
// of papers.
type Extraction struct {
	Entities      common.BatchResult[common.PaperEntities]     `json:"entities"`
	Relations     common.BatchResult[common.RelationCandidate] `json:"relations"`
	Aggregated    []*aggregate.AggregatedRelationship          `json:"aggregated"`
	Statistics    relation.Statistics                          `json:"statistics"`
	Kept          int                                          `json:"kept"`
	TotalEntities int                                          `json:"total_entities"`
}

// Report summarizes a ProcessPapers run.
type Report struct {
	Papers        int                 `json:"papers"`
	Entities      int                 `json:"entities"`
	Mentions      int                 `json:"mentions"`
	Candidates    int                 `json:"candidates"`
	Aggregated    int                 `json:"aggregated"`
	Relationships int                 `json:"relationships"`
	Embedded      int                 `json:"embedded"`
	NER           common.BatchSummary `json:"ner"`
	Relation      common.BatchSummary `json:"relation"`
	Statistics    relation.Statistics `json:"statistics"`
	Duration      time.Duration       `json:"duration"`
}

func mergeSummary(into *common.BatchSummary, s common.BatchSummary) {
	into.Successful += s.Successful
	into.Failed += s.Failed
	into.Errors = append(into.Errors, s.Errors...)
}

// Extract runs entity and relationship extraction over papers and
// aggregates the candidates. Nothing is stored.
func (g *GraphClient) Extract(ctx context.Context, papers []common.Paper) *Extraction {
	papers = dedupePapers(papers)

	ext := &Extraction{
		Entities:  common.BatchResult[common.PaperEntities]{Items: []common.PaperEntities{}, Summary: common.BatchSummary{Errors: []common.BatchError{}}},
		Relations: common.BatchResult[common.RelationCandidate]{Items: []common.RelationCandidate{}, Summary: common.BatchSummary{Errors: []common.BatchError{}}},
	}

	_ = store.ChunkRange(len(papers), g.batchSize, func(start, end int) error {
		ents, rels := g.extractBatch(ctx, papers[start:end])
		ext.Entities.Items = append(ext.Entities.Items, ents.Items...)
		mergeSummary(&ext.Entities.Summary, ents.Summary)
		ext.Relations.Items = append(ext.Relations.Items, rels.Items...)
		mergeSummary(&ext.Relations.Summary, rels.Summary)
		return nil
	})

	for _, pe := range ext.Entities.Items {
		ext.TotalEntities += pe.EntityCount
	}
	ext.Aggregated = aggregate.Sorted(g.aggregator.Aggregate(ext.Relations.Items))
	ext.Kept = len(aggregate.Filter(ext.Aggregated, g.threshold))
	ext.Statistics = relation.ComputeStatistics(ext.Relations.Items)
	return ext
}

func (g *GraphClient) extractBatch(
	ctx context.Context,
	papers []common.Paper,
) (common.BatchResult[common.PaperEntities], common.BatchResult[common.RelationCandidate]) {
	metrics.PipelineQueueLength.Set(float64(len(papers)))
	defer metrics.PipelineQueueLength.Set(0)

	ents := g.entities.ExtractFromPapers(ctx, papers)
	rels := g.relations.ExtractFromPapers(ctx, ents.Items)
	return ents, rels
}

// ProcessPapers builds or updates the knowledge graph from papers. Papers
// are extracted and written batch by batch; relationships are aggregated
// over the whole run and written last. corpus is optional; when set, papers
// are also written to the document corpus with abstract embeddings if an
// AI client is configured.
//
// Per-paper extraction failures are reported in the Report. Storage
// failures abort the run.
func (g *GraphClient) ProcessPapers(
	ctx context.Context,
	papers []common.Paper,
	graphStore store.GraphStorage,
	corpus store.PaperStorage,
) (*Report, error) {
	start := time.Now()
	papers = dedupePapers(papers)

	report := &Report{
		Papers:   len(papers),
		NER:      common.BatchSummary{Errors: []common.BatchError{}},
		Relation: common.BatchSummary{Errors: []common.BatchError{}},
	}
	logger.Info("[Graph] Processing", "total_papers", len(papers), "batch_size", g.batchSize)

	if err := graphStore.EnsureSchema(ctx); err != nil {
		return report, fmt.Errorf("failed to ensure graph schema: %w", err)
	}

	res := newResolver()
	var candidates []common.RelationCandidate

	err := store.ChunkRange(len(papers), g.batchSize, func(from, to int) error {
		batch := papers[from:to]
		logger.Info("[Graph] Processing batch", "from", from, "to", to)

		ents, rels := g.extractBatch(ctx, batch)
		mergeSummary(&report.NER, ents.Summary)
		mergeSummary(&report.Relation, rels.Summary)
		candidates = append(candidates, rels.Items...)

		if corpus != nil {
			embedded, err := g.storeCorpus(ctx, batch, corpus)
			if err != nil {
				return err
			}
			report.Embedded += embedded
		}

		if err := graphStore.UpsertPapers(ctx, batch); err != nil {
			return fmt.Errorf("failed to save papers: %w", err)
		}

		var mentions []store.Mention
		for _, pe := range ents.Items {
			mentions = append(mentions, mentionsOf(pe, res)...)
		}
		if err := graphStore.UpsertEntities(ctx, res.flush()); err != nil {
			return fmt.Errorf("failed to save entities: %w", err)
		}
		if err := graphStore.LinkMentions(ctx, mentions); err != nil {
			return fmt.Errorf("failed to save mentions: %w", err)
		}
		report.Mentions += len(mentions)
		return nil
	})
	if err != nil {
		return report, err
	}

	aggregated := aggregate.Sorted(g.aggregator.Aggregate(candidates))
	kept := aggregate.Filter(aggregated, g.threshold)
	logger.Info("[Graph] Aggregated relationships",
		"candidates", len(candidates),
		"aggregated", len(aggregated),
		"kept", len(kept),
		"threshold", g.threshold,
	)

	endpointEntities(kept, res)
	if err := graphStore.UpsertEntities(ctx, res.flush()); err != nil {
		return report, fmt.Errorf("failed to save entities: %w", err)
	}
	if err := graphStore.UpsertRelationships(ctx, relationshipRecords(kept)); err != nil {
		return report, fmt.Errorf("failed to save relationships: %w", err)
	}

	report.Entities = len(res.order)
	report.Candidates = len(candidates)
	report.Aggregated = len(aggregated)
	report.Relationships = len(kept)
	report.Statistics = relation.ComputeStatistics(candidates)
	report.Duration = time.Since(start)

	logger.Info("[Graph] Graph build completed",
		"papers", report.Papers,
		"entities", report.Entities,
		"relationships", report.Relationships,
		"duration", report.Duration,
	)
	return report, nil
}

// storeCorpus writes papers to the document corpus, embedding abstracts
// first when an AI client is configured. An embedding failure is logged and
// the papers are stored without embeddings.
func (g *GraphClient) storeCorpus(ctx context.Context, papers []common.Paper, corpus store.PaperStorage) (int, error) {
	embedded := 0
	if g.aiClient != nil {
		inputs := make([]string, len(papers))
		for i, p := range papers {
			inputs[i] = p.Text()
		}
		vectors, err := store.GenerateEmbeddings(ctx, g.aiClient, inputs, g.parallelAiRequests)
		if err != nil {
			logger.Warn("[Graph] Failed to embed abstracts", "err", err)
		} else {
			withEmbeddings := make([]common.Paper, len(papers))
			for i, p := range papers {
				if i < len(vectors) {
					p.Embedding = vectors[i]
					embedded++
				}
				withEmbeddings[i] = p
			}
			papers = withEmbeddings
		}
	}

	if err := corpus.UpsertPapers(ctx, papers); err != nil {
		return 0, fmt.Errorf("failed to save papers to corpus: %w", err)
	}
	return embedded, nil
}
