package ner

import (
	"context"
	"regexp"
	"strings"

	"github.com/NimaFathima/astrobiomers/pkg/common"
)

const (
	stressorConfidence  = 0.90
	phenotypeConfidence = 0.88
)

type patternRule struct {
	canonical  string
	entityType common.EntityType
	confidence float64
	re         *regexp.Regexp
	// reject drops a match by its surrounding text.
	reject func(text string, start, end int) bool
}

func stressor(canonical, pattern string) patternRule {
	return patternRule{canonical: canonical, entityType: common.EntityStressor, confidence: stressorConfidence, re: regexp.MustCompile(pattern)}
}

func phenotype(canonical, pattern string) patternRule {
	return patternRule{canonical: canonical, entityType: common.EntityPhenotype, confidence: phenotypeConfidence, re: regexp.MustCompile(pattern)}
}

func (r patternRule) rejecting(fn func(text string, start, end int) bool) patternRule {
	r.reject = fn
	return r
}

var massWords = map[string]bool{"of": true, "per": true, "kg": true, "dose": true, "daily": true}

// unitContext reports whether a short match such as "ug" or "2 g" is used as
// a dose or mass unit: after a number, before a slash, or before "of".
func unitContext(text string, start, end int) bool {
	if end-start > len("μg") {
		return false
	}
	before := strings.TrimRight(text[:start], " ")
	if before != "" {
		if c := before[len(before)-1]; c >= '0' && c <= '9' || c == '.' {
			return true
		}
	}
	rest := strings.TrimLeft(text[end:], " ")
	if strings.HasPrefix(rest, "/") {
		return true
	}
	if fields := strings.Fields(rest); len(fields) > 0 {
		return massWords[strings.ToLower(strings.Trim(fields[0], ".,;:"))]
	}
	return false
}

// RE2 word boundaries are ASCII only, so the Greek "μg" alternative sits
// outside the leading \b. Acronyms match upper case only.
var patternRules = []patternRule{
	stressor("Microgravity", `(?i)(?:\b(?:microgravity|micro-gravity|ug|weightlessness|zero-?g)\b|μg\b)`).rejecting(unitContext),
	stressor("Simulated Microgravity", `\b(?:(?i:simulated microgravity|clinostat|rotating wall vessel|hindlimb unloading|tail suspension)|RPM)\b`),
	stressor("Cosmic Radiation", `\b(?:(?i:cosmic radiation|galactic cosmic ray|space radiation|ionizing radiation)|GCR)\b`),
	stressor("Solar Particle Event", `\b(?:(?i:solar particle event|solar energetic particle)|SPE|SEP)\b`),
	stressor("Hypergravity", `(?i)\b(?:hypergravity|hyper-gravity|centrifuge|[2-9]g|[2-9] g)\b`).rejecting(unitContext),
	stressor("Isolation", `(?i)\b(?:isolation|confinement|confined environment|psychological stress)\b`),
	stressor("Altered Gravity", `(?i)\b(?:altered gravity|variable gravity|partial gravity|lunar gravity|martian gravity)\b`),
	stressor("Spaceflight", `(?i)\b(?:spaceflight|space flight|space mission|ISS mission)\b`),

	phenotype("Bone Loss", `(?i)\b(?:bone loss|bone density loss|osteopenia|osteoporosis|skeletal unloading)\b`),
	phenotype("Muscle Atrophy", `(?i)\b(?:muscle atrophy|muscle wasting|sarcopenia|muscle loss|skeletal muscle deconditioning)\b`),
	phenotype("Immune Dysfunction", `(?i)\b(?:immune dysfunction|immunosuppression|immune impairment|immune dysregulation)\b`),
	phenotype("Fluid Shift", `(?i)\b(?:fluid shift|cephalad fluid shift|facial edema|intracranial pressure)\b`),
	phenotype("Vision Changes", `\b(?:(?i:vision changes|visual impairment|spaceflight associated neuro-ocular syndrome|optic disc edema)|SANS)\b`),
	phenotype("Cardiovascular Changes", `(?i)\b(?:cardiovascular deconditioning|orthostatic intolerance|cardiac atrophy)\b`),
	phenotype("Sensorimotor Changes", `(?i)\b(?:sensorimotor changes|spatial orientation|neurovestibular)\b`),
}

// PatternBackend matches the fixed space-biology gazetteer of stressors and
// phenotypes. It never fails.
type PatternBackend struct {
	rules []patternRule
}

func NewPatternBackend() *PatternBackend {
	return &PatternBackend{rules: patternRules}
}

func (p *PatternBackend) Name() string {
	return "Pattern"
}

func (p *PatternBackend) Extract(_ context.Context, text string) ([]common.EntityMention, error) {
	var out []common.EntityMention
	for _, rule := range p.rules {
		for _, loc := range rule.re.FindAllStringIndex(text, -1) {
			if rule.reject != nil && rule.reject(text, loc[0], loc[1]) {
				continue
			}
			out = append(out, common.EntityMention{
				Text:          text[loc[0]:loc[1]],
				Type:          rule.entityType,
				Start:         loc[0],
				End:           loc[1],
				Confidence:    rule.confidence,
				Source:        p.Name(),
				CanonicalName: rule.canonical,
			})
		}
	}
	return out, nil
}
