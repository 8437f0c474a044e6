package rag

import (
	"regexp"
	"strings"

	"github.com/NimaFathima/astrobiomers/internal/util"

	mapset "github.com/deckarep/golang-set/v2"
)

const maxCues = 5

var gazetteer = []string{
	"microgravity", "spaceflight", "radiation", "cosmic radiation",
	"bone loss", "bone density", "muscle atrophy", "osteoporosis",
	"cardiovascular", "immune system", "metabolism", "gene expression",
	"protein", "genes", "cell", "tissue", "organ",
	"astronaut", "iss", "space station", "mission",
}

// gazetteerPatterns match a term as whole words, allowing a plural "s".
var gazetteerPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(gazetteer))
	for i, term := range gazetteer {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `s?\b`)
	}
	return out
}()

var capitalizedWord = regexp.MustCompile(`\b[A-Z][a-z]+\b`)

// ExtractCues returns the entity cues of a question: gazetteer terms in
// title case followed by capitalized words, deduplicated
// case-insensitively and capped at five.
func ExtractCues(question string) []string {
	var candidates []string
	for i, re := range gazetteerPatterns {
		if re.MatchString(question) {
			candidates = append(candidates, util.TitleCase(gazetteer[i]))
		}
	}
	candidates = append(candidates, capitalizedWord.FindAllString(question, -1)...)

	seen := mapset.NewThreadUnsafeSet[string]()
	cues := make([]string, 0, maxCues)
	for _, c := range candidates {
		if !seen.Add(strings.ToLower(c)) {
			continue
		}
		cues = append(cues, c)
		if len(cues) == maxCues {
			break
		}
	}
	return cues
}
