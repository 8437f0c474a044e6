// Package ner extracts typed biomedical entity mentions from free text.
package ner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/NimaFathima/astrobiomers/internal/util"
	"github.com/NimaFathima/astrobiomers/pkg/ai"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
)

// ErrBackendUnavailable is reported when a configured optional backend
// cannot be constructed.
var ErrBackendUnavailable = errors.New("entity extraction backend unavailable")

// EntityExtractionBackend produces entity mentions for a text. Offsets are
// byte offsets into the text.
type EntityExtractionBackend interface {
	Name() string
	Extract(ctx context.Context, text string) ([]common.EntityMention, error)
}

const (
	BackendPattern     = "pattern"
	BackendTransformer = "transformer"
)

// Extractor merges the pattern backend with any optional backends, removes
// overlapping spans and applies the confidence threshold.
type Extractor struct {
	pattern   *PatternBackend
	optional  []EntityExtractionBackend
	threshold float64
	workers   int
	cache     *expirable.LRU[string, []common.EntityMention]
}

// NewExtractorParams configures an Extractor.
//
// Backends names the optional backends to enable; the pattern backend is
// always on. A backend that needs AIClient is replaced by a NullBackend when
// AIClient is nil.
type NewExtractorParams struct {
	Backends  []string
	AIClient  ai.GraphAIClient
	AIOptions []ai.GenerateOption
	Threshold float64
	CacheSize int
	CacheTTL  time.Duration
	Workers   int
}

func NewExtractor(params NewExtractorParams) (*Extractor, error) {
	if params.CacheSize <= 0 {
		params.CacheSize = 1024
	}
	if params.CacheTTL <= 0 {
		params.CacheTTL = time.Hour
	}
	if params.Workers <= 0 {
		params.Workers = 4
	}

	e := &Extractor{
		pattern:   NewPatternBackend(),
		threshold: params.Threshold,
		workers:   params.Workers,
		cache:     expirable.NewLRU[string, []common.EntityMention](params.CacheSize, nil, params.CacheTTL),
	}

	for _, name := range params.Backends {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "", BackendPattern:
		case BackendTransformer:
			if params.AIClient == nil {
				logger.Warn("[NER] Transformer backend disabled", "err", ErrBackendUnavailable)
				e.optional = append(e.optional, NewNullBackend("Transformer"))
				continue
			}
			e.optional = append(e.optional, NewTransformerBackend(params.AIClient, params.AIOptions...))
		default:
			return nil, fmt.Errorf("unknown entity extraction backend %q", name)
		}
	}

	return e, nil
}

// Backends returns the names of all active backends.
func (e *Extractor) Backends() []string {
	names := []string{e.pattern.Name()}
	for _, b := range e.optional {
		names = append(names, b.Name())
	}
	return names
}

// Extract returns the entity mentions of text, ordered by start offset.
// Failures of optional backends are logged and skipped; the only error is
// a done context.
func (e *Extractor) Extract(ctx context.Context, text string) ([]common.EntityMention, error) {
	if strings.TrimSpace(text) == "" {
		return []common.EntityMention{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := util.ContentHash(text)
	if cached, ok := e.cache.Get(key); ok {
		metrics.CacheHits.WithLabelValues("ner").Inc()
		return slices.Clone(cached), nil
	}
	metrics.CacheMisses.WithLabelValues("ner").Inc()

	mentions, _ := e.pattern.Extract(ctx, text)
	for _, b := range e.optional {
		found, err := b.Extract(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("[NER] Backend failed, skipping", "backend", b.Name(), "err", err)
			metrics.BackendErrors.WithLabelValues(b.Name()).Inc()
			continue
		}
		mentions = append(mentions, found...)
	}

	kept := make([]common.EntityMention, 0, len(mentions))
	for _, m := range Deduplicate(mentions) {
		if m.Confidence >= e.threshold {
			kept = append(kept, m)
			metrics.EntitiesExtracted.WithLabelValues(string(m.Type)).Inc()
		}
	}

	e.cache.Add(key, kept)
	return slices.Clone(kept), nil
}

// Deduplicate removes overlapping mentions. Mentions are sorted by start
// offset and descending confidence; a mention that overlaps the last kept
// one replaces it only when its confidence is strictly higher.
func Deduplicate(mentions []common.EntityMention) []common.EntityMention {
	if len(mentions) == 0 {
		return []common.EntityMention{}
	}

	sorted := slices.Clone(mentions)
	slices.SortStableFunc(sorted, func(a, b common.EntityMention) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})

	out := make([]common.EntityMention, 0, len(sorted))
	lastEnd := -1
	for _, m := range sorted {
		switch {
		case m.Start >= lastEnd:
			out = append(out, m)
			lastEnd = m.End
		case len(out) > 0 && m.Confidence > out[len(out)-1].Confidence:
			out[len(out)-1] = m
			lastEnd = m.End
		}
	}
	return out
}

// ExtractFromPapers runs Extract on title and abstract of every paper.
// Papers are processed concurrently; Items keeps the input order and a
// failed paper keeps an empty entity list.
func (e *Extractor) ExtractFromPapers(ctx context.Context, papers []common.Paper) common.BatchResult[common.PaperEntities] {
	items := make([]common.PaperEntities, len(papers))
	errs := make([]error, len(papers))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, paper := range papers {
		g.Go(func() error {
			entities, err := e.Extract(gCtx, paper.Text())
			if err != nil {
				errs[i] = err
				entities = []common.EntityMention{}
			}
			items[i] = newPaperEntities(paper, entities)
			return nil
		})
	}
	_ = g.Wait()

	result := common.BatchResult[common.PaperEntities]{
		Items:   items,
		Summary: common.BatchSummary{Errors: []common.BatchError{}},
	}
	for i, err := range errs {
		if err != nil {
			result.Summary.Failed++
			result.Summary.Errors = append(result.Summary.Errors, common.BatchError{
				ID:    papers[i].ID(),
				Error: err.Error(),
			})
			metrics.DocumentProcessingErrors.WithLabelValues("ner").Inc()
			continue
		}
		result.Summary.Successful++
	}

	logger.Info("[NER] Extracted entities from papers",
		"papers", len(papers),
		"successful", result.Summary.Successful,
		"failed", result.Summary.Failed,
	)
	return result
}

func newPaperEntities(paper common.Paper, entities []common.EntityMention) common.PaperEntities {
	types := make(map[common.EntityType]int)
	for _, m := range entities {
		t := m.Type
		if t == "" {
			t = common.EntityUnknown
		}
		types[t]++
	}
	return common.PaperEntities{
		Paper:       paper,
		Entities:    entities,
		EntityCount: len(entities),
		EntityTypes: types,
	}
}
