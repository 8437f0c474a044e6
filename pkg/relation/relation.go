// Package relation extracts typed relationship candidates between entity
// mentions of a single document.
package relation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/metrics"
	"github.com/NimaFathima/astrobiomers/pkg/nlp"
)

// Extraction method names recorded on every candidate.
const (
	MethodDependency   = "dependency_parsing"
	MethodPattern      = "pattern_matching"
	MethodCooccurrence = "co-occurrence"
)

const (
	cooccurrenceConfidence = 0.50
	cooccurrenceTrigger    = "co-occurrence"
)

// Extractor runs the dependency, surface pattern and co-occurrence
// strategies over a parsed document.
type Extractor struct {
	parser  nlp.Parser
	workers int
}

// NewExtractorParams configures an Extractor. Parser defaults to the prose
// parser and Workers to 4.
type NewExtractorParams struct {
	Parser  nlp.Parser
	Workers int
}

func NewExtractor(params NewExtractorParams) *Extractor {
	if params.Parser == nil {
		params.Parser = nlp.NewProseParser()
	}
	if params.Workers <= 0 {
		params.Workers = 4
	}
	return &Extractor{parser: params.Parser, workers: params.Workers}
}

// Extract returns the deduplicated, negation-filtered relationship
// candidates of text. A parse failure yields no candidates together with
// the error.
func (x *Extractor) Extract(
	ctx context.Context,
	text string,
	entities []common.EntityMention,
) ([]common.RelationCandidate, error) {
	if len(entities) == 0 || strings.TrimSpace(text) == "" {
		return []common.RelationCandidate{}, nil
	}

	doc, err := x.parser.Parse(ctx, text)
	if err != nil {
		logger.Warn("[Relation] Failed to parse document", "err", err)
		return []common.RelationCandidate{}, fmt.Errorf("failed to parse document: %w", err)
	}

	sorted := slices.Clone(entities)
	slices.SortStableFunc(sorted, func(a, b common.EntityMention) int { return a.Start - b.Start })

	var candidates []common.RelationCandidate
	candidates = append(candidates, dependencyRelations(doc, sorted)...)
	candidates = append(candidates, surfaceRelations(doc, sorted)...)
	candidates = append(candidates, cooccurrenceRelations(doc, sorted)...)

	candidates = Deduplicate(candidates)
	candidates = filterNegated(doc, candidates)

	for _, c := range candidates {
		metrics.RelationsExtracted.WithLabelValues(c.ExtractionMethod).Inc()
	}
	return candidates, nil
}

func insideEntity(start, end int, entities []common.EntityMention) bool {
	for _, e := range entities {
		if start < e.End && end > e.Start {
			return true
		}
	}
	return false
}

// clauseStart returns the offset where the clause containing token i
// begins.
func clauseStart(doc *nlp.Doc, i int) int {
	sent := doc.Sentences[doc.Tokens[i].Sentence]
	for j := i - 1; j >= sent.First; j-- {
		if doc.Tokens[j].IsClauseBoundary() {
			return doc.Tokens[j].End
		}
	}
	return sent.Start
}

func dependencyRelations(doc *nlp.Doc, entities []common.EntityMention) []common.RelationCandidate {
	var out []common.RelationCandidate
	for i, tok := range doc.Tokens {
		relType, confidence, ok := classify(tok.Lower, tok.Lemma)
		if !ok || insideEntity(tok.Start, tok.End, entities) {
			continue
		}

		sent := doc.Sentences[tok.Sentence]
		from := clauseStart(doc, i)

		objectFrom := tok.End
		passive := doc.IsPassive(i)
		if passive {
			// Only passives with a "by" agent are kept, with the agent as
			// subject: "bone loss is caused by microgravity".
			by := doc.Agent(i)
			if by < 0 {
				continue
			}
			objectFrom = doc.Tokens[by].End
		}

		var subject, object *common.EntityMention
		for k := range entities {
			e := &entities[k]
			if e.End <= tok.Start && e.Start >= from {
				subject = e
			}
			if object == nil && e.Start >= objectFrom && e.End <= sent.End {
				object = e
			}
		}
		if subject == nil || object == nil || sameEntity(*subject, *object) {
			continue
		}
		if passive {
			subject, object = object, subject
		}

		out = append(out, newCandidate(*subject, *object, relType, confidence, sent.Text, tok.Text, MethodDependency, tok.Start))
	}
	return out
}

func surfaceRelations(doc *nlp.Doc, entities []common.EntityMention) []common.RelationCandidate {
	text := doc.Text
	var out []common.RelationCandidate
	for _, p := range surfacePatterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			verb, verbStart := group(p.re, loc, text, "verb")
			tgtText, _ := group(p.re, loc, text, "tgt")

			target, ok := resolveEntity(tgtText, entities)
			if !ok {
				continue
			}

			var source common.EntityMention
			if srcText, _ := group(p.re, loc, text, "src"); srcText != "" {
				source, ok = resolveEntity(srcText, entities)
			} else {
				source, ok = nearestBefore(doc, loc[0], entities)
			}
			if !ok || sameEntity(source, target) {
				continue
			}

			evidence := window(text, loc[0], loc[1], evidenceContext)
			out = append(out, newCandidate(source, target, p.relType(verb), surfaceConfidence, evidence, verb, MethodPattern, verbStart))
		}
	}
	return out
}

// nearestBefore returns the entity ending closest before offset within the
// same sentence.
func nearestBefore(doc *nlp.Doc, offset int, entities []common.EntityMention) (common.EntityMention, bool) {
	s := doc.SentenceAt(offset)
	if s < 0 {
		return common.EntityMention{}, false
	}
	from := doc.Sentences[s].Start

	var found *common.EntityMention
	for k := range entities {
		e := &entities[k]
		if e.End <= offset && e.Start >= from {
			found = e
		}
	}
	if found == nil {
		return common.EntityMention{}, false
	}
	return *found, true
}

func cooccurrenceRelations(doc *nlp.Doc, entities []common.EntityMention) []common.RelationCandidate {
	var out []common.RelationCandidate
	for _, sent := range doc.Sentences {
		var inSentence []common.EntityMention
		for _, e := range entities {
			if e.Start >= sent.Start && e.End <= sent.End {
				inSentence = append(inSentence, e)
			}
		}
		for i, a := range inSentence {
			for _, b := range inSentence[i+1:] {
				if a.Type == b.Type {
					continue
				}
				out = append(out, newCandidate(a, b, common.RelAssociatedWith, cooccurrenceConfidence, sent.Text, cooccurrenceTrigger, MethodCooccurrence, -1))
			}
		}
	}
	return out
}

func sameEntity(a, b common.EntityMention) bool {
	return (a.Start == b.Start && a.End == b.End) || strings.EqualFold(a.Name(), b.Name())
}

func newCandidate(
	source, target common.EntityMention,
	relType common.RelationType,
	confidence float64,
	evidence, trigger, method string,
	triggerStart int,
) common.RelationCandidate {
	return common.RelationCandidate{
		SourceText:       source.Name(),
		SourceType:       source.Type,
		TargetText:       target.Name(),
		TargetType:       target.Type,
		RelationType:     relType,
		Confidence:       confidence,
		Evidence:         evidence,
		TriggerWord:      trigger,
		ExtractionMethod: method,
		TriggerStart:     triggerStart,
	}
}

// Key identifies a relationship independent of casing.
type Key struct {
	Source string
	Target string
	Type   common.RelationType
}

func KeyOf(c common.RelationCandidate) Key {
	return Key{
		Source: strings.ToLower(c.SourceText),
		Target: strings.ToLower(c.TargetText),
		Type:   c.RelationType,
	}
}

// Deduplicate keeps one candidate per Key, the one with the highest
// confidence. The first occurrence wins ties and keeps its position.
func Deduplicate(candidates []common.RelationCandidate) []common.RelationCandidate {
	index := make(map[Key]int, len(candidates))
	out := make([]common.RelationCandidate, 0, len(candidates))
	for _, c := range candidates {
		k := KeyOf(c)
		if i, ok := index[k]; ok {
			if c.Confidence > out[i].Confidence {
				out[i] = c
			}
			continue
		}
		index[k] = len(out)
		out = append(out, c)
	}
	return out
}

func filterNegated(doc *nlp.Doc, candidates []common.RelationCandidate) []common.RelationCandidate {
	out := make([]common.RelationCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.TriggerStart >= 0 && isNegated(doc, c.TriggerStart) {
			logger.Debug("[Relation] Dropped negated relationship",
				"source", c.SourceText,
				"target", c.TargetText,
				"type", c.RelationType,
			)
			metrics.RelationsNegated.Inc()
			continue
		}
		out = append(out, c)
	}
	return out
}

// isNegated reports whether the trigger at offset has a negation dependent
// or a negation cue within negationWindow tokens.
func isNegated(doc *nlp.Doc, offset int) bool {
	i := doc.TokenAt(offset)
	if i < 0 {
		return false
	}
	if doc.HasNegDependent(i) {
		return true
	}
	from := max(0, i-negationWindow)
	to := min(len(doc.Tokens)-1, i+negationWindow)
	for j := from; j <= to; j++ {
		if negationCues[doc.Tokens[j].Lower] {
			return true
		}
	}
	return false
}
