package relation

import "github.com/NimaFathima/astrobiomers/pkg/common"

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

type triggerSet struct {
	relType    common.RelationType
	confidence float64
	words      map[string]bool
}

// triggerSets are checked in order; the first set containing a token wins.
var triggerSets = []triggerSet{
	{common.RelUpregulates, 0.85, set(
		"increase", "increases", "increased", "increasing", "upregulate", "upregulates",
		"upregulated", "upregulation", "enhance", "enhances", "enhanced", "activate",
		"activates", "activated", "activation", "induce", "induces", "induced", "induction",
		"stimulate", "stimulates", "stimulated", "stimulation", "promote", "promotes",
		"promoted", "elevation", "elevated", "overexpress", "overexpressed", "overexpression",
	)},
	{common.RelDownregulates, 0.85, set(
		"decrease", "decreases", "decreased", "decreasing", "downregulate", "downregulates",
		"downregulated", "downregulation", "inhibit", "inhibits", "inhibited", "inhibition",
		"suppress", "suppresses", "suppressed", "suppression", "reduce", "reduces", "reduced",
		"reduction", "repress", "represses", "repressed", "repression", "attenuate",
		"attenuates", "attenuated", "attenuation", "diminish", "diminished",
	)},
	{common.RelCauses, 0.80, set(
		"cause", "causes", "caused", "causing", "lead", "leads", "led", "leading",
		"result", "results", "resulted", "resulting", "induce", "induces", "induced",
		"produce", "produces", "produced", "trigger", "triggers", "triggered",
	)},
	{common.RelTreats, 0.80, set(
		"treat", "treats", "treated", "treatment", "prevent", "prevents", "prevented",
		"prevention", "ameliorate", "ameliorates", "ameliorated", "amelioration",
		"alleviate", "alleviates", "alleviated", "alleviation", "rescue", "rescues",
		"rescued", "protect", "protects", "protected", "protection", "countermeasure",
	)},
	{common.RelInteractsWith, 0.75, set(
		"interact", "interacts", "interacted", "interaction", "bind", "binds", "bound",
		"binding", "associate", "associates", "associated", "association", "complex",
		"partner", "colocalize", "colocalizes", "colocalized",
	)},
	{common.RelPartOf, 0.70, set(
		"part", "component", "member", "element", "region", "domain", "subunit",
		"contained", "within", "localized", "located",
	)},
}

// classify returns the relation type and confidence signalled by a token,
// matching its lower-cased form first and its lemma second.
func classify(lower, lemma string) (common.RelationType, float64, bool) {
	for _, ts := range triggerSets {
		if ts.words[lower] || ts.words[lemma] {
			return ts.relType, ts.confidence, true
		}
	}
	return "", 0, false
}

var negationCues = set(
	"not", "no", "neither", "nor", "never", "none", "without", "lack", "absent",
	"unlikely", "fail", "failed", "unable", "cannot", "n't", "didn't", "unaffected",
)

// negationWindow is how many tokens on either side of a trigger are
// searched for a negation cue.
const negationWindow = 3
