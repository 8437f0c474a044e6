// Package aggregate fuses relationship candidates from many documents into
// one graph-ready relationship per (source, target, type).
package aggregate

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/NimaFathima/astrobiomers/pkg/common"

	mapset "github.com/deckarep/golang-set/v2"
)

// MaxEvidenceSentences is how many evidence sentences a relationship keeps.
const MaxEvidenceSentences = 5

// Key identifies an aggregated relationship. Source and Target are
// lower-cased.
type Key struct {
	Source string
	Target string
	Type   common.RelationType
}

func (k Key) String() string {
	return k.Source + "|" + string(k.Type) + "|" + k.Target
}

func KeyOf(c common.RelationCandidate) Key {
	return Key{
		Source: strings.ToLower(c.SourceText),
		Target: strings.ToLower(c.TargetText),
		Type:   c.RelationType,
	}
}

// AggregatedRelationship is a relationship backed by one or more
// candidates. Names and types are those of the first candidate seen.
type AggregatedRelationship struct {
	Source       string
	SourceType   common.EntityType
	Target       string
	TargetType   common.EntityType
	RelationType common.RelationType

	Count             int
	ConfidenceScores  []float64
	PMIDs             mapset.Set[string]
	EvidenceSentences []string
	ExtractionMethods mapset.Set[string]

	AvgConfidence   float64
	FinalConfidence float64
}

func (r *AggregatedRelationship) Key() Key {
	return Key{
		Source: strings.ToLower(r.Source),
		Target: strings.ToLower(r.Target),
		Type:   r.RelationType,
	}
}

// PMIDList returns the supporting PMIDs in sorted order.
func (r *AggregatedRelationship) PMIDList() []string {
	return sortedSlice(r.PMIDs)
}

// MethodList returns the extraction methods in sorted order.
func (r *AggregatedRelationship) MethodList() []string {
	return sortedSlice(r.ExtractionMethods)
}

func sortedSlice(s mapset.Set[string]) []string {
	if s == nil {
		return []string{}
	}
	out := s.ToSlice()
	slices.Sort(out)
	return out
}

func (r *AggregatedRelationship) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Source            string              `json:"source"`
		SourceType        common.EntityType   `json:"source_type"`
		Target            string              `json:"target"`
		TargetType        common.EntityType   `json:"target_type"`
		RelationType      common.RelationType `json:"relation_type"`
		Count             int                 `json:"count"`
		ConfidenceScores  []float64           `json:"confidence_scores"`
		PMIDs             []string            `json:"pmids"`
		EvidenceSentences []string            `json:"evidence_sentences"`
		ExtractionMethods []string            `json:"extraction_methods"`
		AvgConfidence     float64             `json:"avg_confidence"`
		FinalConfidence   float64             `json:"final_confidence"`
	}{
		Source:            r.Source,
		SourceType:        r.SourceType,
		Target:            r.Target,
		TargetType:        r.TargetType,
		RelationType:      r.RelationType,
		Count:             r.Count,
		ConfidenceScores:  r.ConfidenceScores,
		PMIDs:             r.PMIDList(),
		EvidenceSentences: r.EvidenceSentences,
		ExtractionMethods: r.MethodList(),
		AvgConfidence:     r.AvgConfidence,
		FinalConfidence:   r.FinalConfidence,
	})
}

// Params are the confidence fusion parameters:
//
//	final = min(Cap, avg + min(MaxBoost, count*PerDocumentBoost))
type Params struct {
	PerDocumentBoost float64
	MaxBoost         float64
	Cap              float64
}

func DefaultParams() Params {
	return Params{PerDocumentBoost: 0.02, MaxBoost: 0.2, Cap: 0.99}
}

type Aggregator struct {
	params Params
}

func NewAggregator(params Params) *Aggregator {
	d := DefaultParams()
	if params.Cap <= 0 {
		params.Cap = d.Cap
	}
	if params.PerDocumentBoost < 0 {
		params.PerDocumentBoost = d.PerDocumentBoost
	}
	if params.MaxBoost < 0 {
		params.MaxBoost = d.MaxBoost
	}
	return &Aggregator{params: params}
}

// Aggregate groups candidates by Key and computes the fused confidence of
// every group.
func (a *Aggregator) Aggregate(candidates []common.RelationCandidate) map[Key]*AggregatedRelationship {
	out := make(map[Key]*AggregatedRelationship)
	for _, c := range candidates {
		k := KeyOf(c)
		agg, ok := out[k]
		if !ok {
			agg = &AggregatedRelationship{
				Source:            c.SourceText,
				SourceType:        c.SourceType,
				Target:            c.TargetText,
				TargetType:        c.TargetType,
				RelationType:      c.RelationType,
				PMIDs:             mapset.NewThreadUnsafeSet[string](),
				ExtractionMethods: mapset.NewThreadUnsafeSet[string](),
			}
			out[k] = agg
		}

		agg.Count++
		agg.ConfidenceScores = append(agg.ConfidenceScores, c.Confidence)
		if c.PMID != "" {
			agg.PMIDs.Add(c.PMID)
		}
		if c.ExtractionMethod != "" {
			agg.ExtractionMethods.Add(c.ExtractionMethod)
		}
		if len(agg.EvidenceSentences) < MaxEvidenceSentences && c.Evidence != "" {
			agg.EvidenceSentences = append(agg.EvidenceSentences, c.Evidence)
		}
	}

	for _, agg := range out {
		agg.AvgConfidence = mean(agg.ConfidenceScores)
		agg.FinalConfidence = a.Fuse(agg.AvgConfidence, agg.Count)
	}
	return out
}

// Fuse applies the support boost for count candidates to avg. The result
// never exceeds Cap and is never below avg unless avg itself exceeds Cap.
func (a *Aggregator) Fuse(avg float64, count int) float64 {
	boost := min(a.params.MaxBoost, float64(count)*a.params.PerDocumentBoost)
	return min(a.params.Cap, avg+boost)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Aggregate groups candidates with the default parameters.
func Aggregate(candidates []common.RelationCandidate) map[Key]*AggregatedRelationship {
	return NewAggregator(DefaultParams()).Aggregate(candidates)
}

// Sorted returns the relationships ordered by final confidence, highest
// first, then by key.
func Sorted(m map[Key]*AggregatedRelationship) []*AggregatedRelationship {
	out := make([]*AggregatedRelationship, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *AggregatedRelationship) int {
		switch {
		case a.FinalConfidence > b.FinalConfidence:
			return -1
		case a.FinalConfidence < b.FinalConfidence:
			return 1
		}
		return strings.Compare(a.Key().String(), b.Key().String())
	})
	return out
}

// Filter returns the relationships whose final confidence is at least
// threshold.
func Filter(rels []*AggregatedRelationship, threshold float64) []*AggregatedRelationship {
	out := make([]*AggregatedRelationship, 0, len(rels))
	for _, r := range rels {
		if r.FinalConfidence >= threshold {
			out = append(out, r)
		}
	}
	return out
}
