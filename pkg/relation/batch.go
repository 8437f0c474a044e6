package relation

import (
	"context"

	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// ExtractFromPapers extracts relationships from every paper that has
// entities. Each candidate carries the identifiers of its paper. A paper
// that fails to parse contributes nothing and is reported in the summary.
func (x *Extractor) ExtractFromPapers(
	ctx context.Context,
	papers []common.PaperEntities,
) common.BatchResult[common.RelationCandidate] {
	perPaper := make([][]common.RelationCandidate, len(papers))
	errs := make([]error, len(papers))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(x.workers)
	for i, pe := range papers {
		if len(pe.Entities) == 0 {
			continue
		}
		g.Go(func() error {
			found, err := x.Extract(gCtx, pe.Paper.Text(), pe.Entities)
			if err != nil {
				errs[i] = err
				return nil
			}
			for k := range found {
				found[k].PMID = pe.Paper.PMID
				found[k].DOI = pe.Paper.DOI
				found[k].PublicationYear = pe.Paper.PublicationYear
				found[k].PaperTitle = pe.Paper.Title
			}
			perPaper[i] = found
			return nil
		})
	}
	_ = g.Wait()

	result := common.BatchResult[common.RelationCandidate]{
		Items:   []common.RelationCandidate{},
		Summary: common.BatchSummary{Errors: []common.BatchError{}},
	}
	for i, pe := range papers {
		if len(pe.Entities) == 0 {
			continue
		}
		if errs[i] != nil {
			result.Summary.Failed++
			result.Summary.Errors = append(result.Summary.Errors, common.BatchError{
				ID:    pe.Paper.ID(),
				Error: errs[i].Error(),
			})
			metrics.DocumentProcessingErrors.WithLabelValues("relation").Inc()
			continue
		}
		result.Summary.Successful++
		result.Items = append(result.Items, perPaper[i]...)
	}

	logger.Info("[Relation] Extracted relationships from papers",
		"papers", len(papers),
		"relationships", len(result.Items),
		"successful", result.Summary.Successful,
		"failed", result.Summary.Failed,
	)
	return result
}
