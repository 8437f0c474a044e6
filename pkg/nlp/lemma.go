package nlp

import "strings"

var irregular = map[string]string{
	"led":      "lead",
	"bound":    "bind",
	"was":      "be",
	"were":     "be",
	"is":       "be",
	"are":      "be",
	"been":     "be",
	"did":      "do",
	"does":     "do",
	"done":     "do",
	"had":      "have",
	"has":      "have",
	"made":     "make",
	"showed":   "show",
	"shown":    "show",
	"found":    "find",
	"taken":    "take",
	"began":    "begin",
	"knew":     "know",
	"children": "child",
	"mice":     "mouse",
	"feet":     "foot",
}

// Lemma returns a heuristic base form of a lower-cased word. It handles
// common irregular forms and regular -s, -es, -ies, -ed and -ing endings,
// restoring a final e on stems such as "induc" and "activat".
func Lemma(lower string) string {
	if base, ok := irregular[lower]; ok {
		return base
	}
	if len(lower) <= 3 {
		return lower
	}

	switch {
	case strings.HasSuffix(lower, "ies") && len(lower) > 4:
		return lower[:len(lower)-3] + "y"
	case strings.HasSuffix(lower, "sses"), strings.HasSuffix(lower, "shes"),
		strings.HasSuffix(lower, "ches"), strings.HasSuffix(lower, "xes"):
		return lower[:len(lower)-2]
	case strings.HasSuffix(lower, "ss"), strings.HasSuffix(lower, "us"), strings.HasSuffix(lower, "is"):
		return lower
	case strings.HasSuffix(lower, "s"):
		return lower[:len(lower)-1]
	case strings.HasSuffix(lower, "ied"):
		return lower[:len(lower)-3] + "y"
	case strings.HasSuffix(lower, "eed"):
		return lower
	case strings.HasSuffix(lower, "ed") && len(lower) > 4:
		return restoreE(lower[:len(lower)-2])
	case strings.HasSuffix(lower, "ing") && len(lower) > 5:
		return restoreE(lower[:len(lower)-3])
	}
	return lower
}

// restoreE undoes consonant doubling and restores a dropped final e for
// stems that usually belong to verbs ending in e.
func restoreE(stem string) string {
	n := len(stem)
	if n >= 2 && stem[n-1] == stem[n-2] && !strings.ContainsRune("aeiouls", rune(stem[n-1])) {
		return stem[:n-1]
	}
	for _, suffix := range alwaysE {
		if strings.HasSuffix(stem, suffix) {
			return stem + "e"
		}
	}
	for _, suffix := range consonantE {
		if strings.HasSuffix(stem, suffix) && n > len(suffix) && !isVowel(stem[n-len(suffix)-1]) {
			return stem + "e"
		}
	}
	if strings.HasSuffix(stem, "at") && n > 2 && stem[n-3] != 'e' && stem[n-3] != 'o' {
		return stem + "e"
	}
	return stem
}

var (
	alwaysE    = []string{"as", "uc", "iz", "ys", "ps", "rg", "nc", "rv", "lv", "iv", "ov", "ud", "ag"}
	consonantE = []string{"ot", "ut", "ul", "ur", "id"}
)

func isVowel(b byte) bool {
	return strings.IndexByte("aeiou", b) >= 0
}
