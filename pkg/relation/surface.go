package relation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/NimaFathima/astrobiomers/pkg/common"
)

const (
	surfaceConfidence = 0.75
	evidenceContext   = 100
)

// surfacePattern is a fixed phrase template. Named groups: src and tgt are
// resolved to entities, verb is the trigger. A pattern without src takes the
// nearest entity before the match in the same sentence as source.
type surfacePattern struct {
	re      *regexp.Regexp
	relType func(verb string) common.RelationType
}

func fixed(t common.RelationType) func(string) common.RelationType {
	return func(string) common.RelationType { return t }
}

func byDirection(verb string) common.RelationType {
	v := strings.ToLower(verb)
	if strings.HasPrefix(v, "de") || strings.HasPrefix(v, "down") {
		return common.RelDownregulates
	}
	return common.RelUpregulates
}

var surfacePatterns = []surfacePattern{
	{
		re:      regexp.MustCompile(`(?i)\b(?P<src>microgravity|spaceflight)\s+(?P<verb>induce[sd]?|cause[sd]?|lead[sd]?\s+to|led\s+to)\s+(?P<tgt>[^.;]+?)\s+(?:loss|atrophy|dysfunction)\b`),
		relType: fixed(common.RelCauses),
	},
	{
		re:      regexp.MustCompile(`(?i)\b(?P<src>radiation|cosmic rays)\s+(?P<verb>induce[sd]?|cause[sd]?)\s+(?P<tgt>[^.;]+?)\s+(?:damage|mutation|apoptosis)\b`),
		relType: fixed(common.RelCauses),
	},
	{
		re:      regexp.MustCompile(`(?i)\b(?P<tgt>[A-Za-z0-9][\w-]*)\s+(?:gene|protein|mrna)\s+(?:expression\s+)?(?:(?:was|were)\s+)?(?P<verb>increased|upregulated|decreased|downregulated)\b`),
		relType: byDirection,
	},
	{
		re:      regexp.MustCompile(`(?i)\b(?P<src>exercise|training|diet|drug)\s+(?P<verb>prevent[sd]?|attenuate[sd]?|reduce[sd]?|ameliorate[sd]?)\s+(?P<tgt>\w[\w-]*(?:\s+\w[\w-]*)?)`),
		relType: fixed(common.RelTreats),
	},
}

func group(re *regexp.Regexp, loc []int, text, name string) (string, int) {
	i := re.SubexpIndex(name)
	if i < 0 || loc[2*i] < 0 {
		return "", -1
	}
	return text[loc[2*i]:loc[2*i+1]], loc[2*i]
}

// resolveEntity finds the entity a matched phrase refers to: an exact
// case-insensitive match on text or canonical name first, then containment
// in either direction.
func resolveEntity(phrase string, entities []common.EntityMention) (common.EntityMention, bool) {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if p == "" {
		return common.EntityMention{}, false
	}
	for _, e := range entities {
		if strings.ToLower(e.Text) == p || strings.ToLower(e.Name()) == p {
			return e, true
		}
	}
	for _, e := range entities {
		t := strings.ToLower(e.Text)
		if strings.Contains(t, p) || strings.Contains(p, t) {
			return e, true
		}
	}
	return common.EntityMention{}, false
}

// window returns text[start-n : end+n] clamped to the text and widened to
// rune boundaries.
func window(text string, start, end, n int) string {
	from := max(0, start-n)
	to := min(len(text), end+n)
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return text[from:to]
}
