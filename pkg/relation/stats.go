package relation

import "github.com/NimaFathima/astrobiomers/pkg/common"

// Statistics summarises a set of relationship candidates.
type Statistics struct {
	Total         int                         `json:"total"`
	ByType        map[common.RelationType]int `json:"by_type"`
	ByMethod      map[string]int              `json:"by_method"`
	ByConfidence  map[string]int              `json:"by_confidence"`
	AvgConfidence float64                     `json:"avg_confidence"`
}

// Confidence bands used by Statistics.
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// Band returns the confidence band of c: high from 0.8, medium from 0.6.
func Band(c float64) string {
	switch {
	case c >= 0.8:
		return BandHigh
	case c >= 0.6:
		return BandMedium
	default:
		return BandLow
	}
}

func ComputeStatistics(candidates []common.RelationCandidate) Statistics {
	stats := Statistics{
		Total:        len(candidates),
		ByType:       make(map[common.RelationType]int),
		ByMethod:     make(map[string]int),
		ByConfidence: map[string]int{BandHigh: 0, BandMedium: 0, BandLow: 0},
	}
	if len(candidates) == 0 {
		return stats
	}

	var sum float64
	for _, c := range candidates {
		stats.ByType[c.RelationType]++
		stats.ByMethod[c.ExtractionMethod]++
		stats.ByConfidence[Band(c.Confidence)]++
		sum += c.Confidence
	}
	stats.AvgConfidence = sum / float64(len(candidates))
	return stats
}
