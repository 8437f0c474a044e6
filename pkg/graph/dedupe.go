package graph

import (
	"strings"

	"github.com/NimaFathima/astrobiomers/pkg/common"
)

// dedupePapers drops papers without an id and repeated ids. The last copy
// of a paper wins and keeps the position of the first.
func dedupePapers(papers []common.Paper) []common.Paper {
	index := make(map[string]int, len(papers))
	out := make([]common.Paper, 0, len(papers))
	for _, p := range papers {
		id := strings.TrimSpace(p.ID())
		if id == "" {
			continue
		}
		if i, ok := index[id]; ok {
			out[i] = p
			continue
		}
		index[id] = len(out)
		out = append(out, p)
	}
	return out
}
