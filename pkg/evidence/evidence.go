// Package evidence answers which papers justify a knowledge graph edge.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/NimaFathima/astrobiomers/internal/util"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	mapset "github.com/deckarep/golang-set/v2"
)

// NotFoundMessage is the message of a record for an absent relationship.
const NotFoundMessage = "No relationship found between specified nodes"

const (
	defaultEdgeLimit   = 100
	defaultPaperLimit  = 20
	defaultMinMatches  = 2
	abstractSnippetLen = 500
)

// Thresholds are the minimum paper counts of the confidence labels.
type Thresholds struct {
	High   int
	Medium int
	Low    int
}

func DefaultThresholds() Thresholds {
	return Thresholds{High: 5, Medium: 3, Low: 1}
}

// Label maps a paper count to its confidence label.
func (t Thresholds) Label(count int) common.ConfidenceLabel {
	switch {
	case count >= t.High:
		return common.ConfidenceHigh
	case count >= t.Medium:
		return common.ConfidenceMedium
	case count >= t.Low && count > 0:
		return common.ConfidenceLow
	default:
		return common.ConfidenceUnverified
	}
}

type Service struct {
	graph      store.GraphStorage
	thresholds Thresholds
}

type NewServiceParams struct {
	Graph      store.GraphStorage
	Thresholds Thresholds
}

func NewService(params NewServiceParams) *Service {
	t := params.Thresholds
	if t.Low <= 0 || t.Medium < t.Low || t.High < t.Medium {
		t = DefaultThresholds()
	}
	return &Service{graph: params.Graph, thresholds: t}
}

func (s *Service) Thresholds() Thresholds {
	return s.thresholds
}

func unavailable(op string, err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", store.ErrUnavailable, op, err)
}

// GetEdgeEvidence returns the relationship from sourceID to targetID,
// optionally restricted to relType, with the papers linked to both
// endpoints. An absent relationship is a record with Found false.
func (s *Service) GetEdgeEvidence(ctx context.Context, sourceID, targetID, relType string) (common.EvidenceRecord, error) {
	relType = strings.ToUpper(strings.TrimSpace(relType))

	edge, err := s.graph.EdgeEvidence(ctx, sourceID, targetID, relType)
	if err != nil {
		return common.EvidenceRecord{}, unavailable("edge evidence", err)
	}
	if edge == nil {
		logger.Warn("[Evidence] No relationship found", "source", sourceID, "target", targetID, "type", relType)
		return common.EvidenceRecord{
			Found:           false,
			Message:         NotFoundMessage,
			Papers:          []common.EvidencePaper{},
			ConfidenceLabel: common.ConfidenceUnverified,
		}, nil
	}

	papers := make([]common.EvidencePaper, 0, len(edge.Papers))
	for _, p := range edge.Papers {
		papers = append(papers, toEvidencePaper(p))
	}

	source := edge.Source.Entity()
	target := edge.Target.Entity()

	logger.Debug("[Evidence] Found supporting papers", "source", source.Name, "target", target.Name, "papers", len(papers))

	return common.EvidenceRecord{
		Found:            true,
		Source:           &source,
		Target:           &target,
		RelationshipType: edge.Type,
		Relationship:     edge.Properties,
		Papers:           papers,
		EvidenceCount:    len(papers),
		ConfidenceLabel:  s.thresholds.Label(len(papers)),
	}, nil
}

// GetAllEdgeEvidence lists edges by supporting paper count, highest first.
func (s *Service) GetAllEdgeEvidence(ctx context.Context, limit int) ([]common.EdgeEvidence, error) {
	if limit <= 0 {
		limit = defaultEdgeLimit
	}
	edges, err := s.graph.EdgesByPaperCount(ctx, limit)
	if err != nil {
		return nil, unavailable("all edge evidence", err)
	}
	for i := range edges {
		edges[i].Confidence = s.thresholds.Label(edges[i].PaperCount)
	}
	return edges, nil
}

// SearchPapersByEntities returns papers mentioning at least two of names.
func (s *Service) SearchPapersByEntities(ctx context.Context, names []string, limit int) ([]store.PaperMatch, error) {
	if limit <= 0 {
		limit = defaultPaperLimit
	}

	unique := mapset.NewThreadUnsafeSet[string]()
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || !unique.Add(strings.ToLower(n)) {
			continue
		}
		cleaned = append(cleaned, n)
	}
	if len(cleaned) < defaultMinMatches {
		return []store.PaperMatch{}, nil
	}

	papers, err := s.graph.PapersByEntities(ctx, cleaned, defaultMinMatches, limit)
	if err != nil {
		return nil, unavailable("papers by entities", err)
	}
	return papers, nil
}

func toEvidencePaper(p common.Paper) common.EvidencePaper {
	return common.EvidencePaper{
		PMID:            p.PMID,
		Title:           p.Title,
		Year:            p.PublicationYear,
		Authors:         p.Authors,
		AbstractSnippet: util.Truncate(p.Abstract, abstractSnippetLen),
	}
}
