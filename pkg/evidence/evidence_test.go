package evidence

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/store"
)

type fakeGraph struct {
	store.GraphStorage

	edge    *store.EdgeRecord
	edges   []common.EdgeEvidence
	matches []store.PaperMatch
	err     error

	gotRelType    string
	gotNames      []string
	gotMinMatches int
	gotLimit      int
}

func (f *fakeGraph) EdgeEvidence(_ context.Context, _, _ string, relType string) (*store.EdgeRecord, error) {
	f.gotRelType = relType
	return f.edge, f.err
}

func (f *fakeGraph) EdgesByPaperCount(_ context.Context, limit int) ([]common.EdgeEvidence, error) {
	f.gotLimit = limit
	return f.edges, f.err
}

func (f *fakeGraph) PapersByEntities(_ context.Context, names []string, minMatches, limit int) ([]store.PaperMatch, error) {
	f.gotNames = names
	f.gotMinMatches = minMatches
	f.gotLimit = limit
	return f.matches, f.err
}

func papers(n int) []common.Paper {
	out := make([]common.Paper, n)
	for i := range out {
		out[i] = common.Paper{PMID: string(rune('a' + i)), Title: "paper", Abstract: strings.Repeat("x", 600)}
	}
	return out
}

func TestLabelBoundaries(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		count int
		want  common.ConfidenceLabel
	}{
		{0, common.ConfidenceUnverified},
		{1, common.ConfidenceLow},
		{2, common.ConfidenceLow},
		{3, common.ConfidenceMedium},
		{4, common.ConfidenceMedium},
		{5, common.ConfidenceHigh},
		{50, common.ConfidenceHigh},
	}
	for _, tt := range tests {
		if got := th.Label(tt.count); got != tt.want {
			t.Errorf("Label(%d) = %s, want %s", tt.count, got, tt.want)
		}
	}
}

func TestConfigurableThresholds(t *testing.T) {
	s := NewService(NewServiceParams{Thresholds: Thresholds{High: 10, Medium: 4, Low: 2}})
	if got := s.Thresholds().Label(1); got != common.ConfidenceUnverified {
		t.Fatalf("Label(1) = %s", got)
	}
	if got := s.Thresholds().Label(5); got != common.ConfidenceMedium {
		t.Fatalf("Label(5) = %s", got)
	}

	invalid := NewService(NewServiceParams{Thresholds: Thresholds{High: 1, Medium: 3, Low: 5}})
	if !reflect.DeepEqual(invalid.Thresholds(), DefaultThresholds()) {
		t.Fatalf("invalid thresholds should fall back to defaults, got %+v", invalid.Thresholds())
	}
}

func TestGetEdgeEvidenceNotFound(t *testing.T) {
	g := &fakeGraph{}
	s := NewService(NewServiceParams{Graph: g})

	rec, err := s.GetEdgeEvidence(context.Background(), "stressor:microgravity", "phenotype:bone loss", "causes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Found || rec.Message != NotFoundMessage {
		t.Fatalf("expected not found record, got %+v", rec)
	}
	if rec.ConfidenceLabel != common.ConfidenceUnverified || len(rec.Papers) != 0 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if g.gotRelType != "CAUSES" {
		t.Fatalf("relationship type should be upper-cased, got %q", g.gotRelType)
	}
}

func TestGetEdgeEvidenceFound(t *testing.T) {
	g := &fakeGraph{edge: &store.EdgeRecord{
		Source:     store.NewGraphNode([]string{"Entity", "Stressor"}, map[string]any{"id": "stressor:microgravity", "name": "Microgravity"}),
		Target:     store.NewGraphNode([]string{"Entity", "Phenotype"}, map[string]any{"id": "phenotype:bone loss", "name": "Bone Loss"}),
		Type:       "CAUSES",
		Properties: map[string]any{"confidence": 0.9},
		Papers:     papers(3),
	}}
	s := NewService(NewServiceParams{Graph: g})

	rec, err := s.GetEdgeEvidence(context.Background(), "stressor:microgravity", "phenotype:bone loss", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.Found || rec.EvidenceCount != 3 || rec.ConfidenceLabel != common.ConfidenceMedium {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Source.Type != common.EntityStressor || rec.Target.Name != "Bone Loss" {
		t.Fatalf("unexpected endpoints %+v %+v", rec.Source, rec.Target)
	}
	if got := len([]rune(rec.Papers[0].AbstractSnippet)); got != abstractSnippetLen {
		t.Fatalf("snippet length = %d", got)
	}
}

func TestGetEdgeEvidenceUnavailable(t *testing.T) {
	s := NewService(NewServiceParams{Graph: &fakeGraph{err: errors.New("connection refused")}})

	_, err := s.GetEdgeEvidence(context.Background(), "a", "b", "")
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGetAllEdgeEvidence(t *testing.T) {
	g := &fakeGraph{edges: []common.EdgeEvidence{
		{SourceName: "Microgravity", TargetName: "Bone Loss", PaperCount: 7},
		{SourceName: "IGF-1", TargetName: "PI3K", PaperCount: 0},
	}}
	s := NewService(NewServiceParams{Graph: g})

	edges, err := s.GetAllEdgeEvidence(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.gotLimit != defaultEdgeLimit {
		t.Fatalf("limit = %d", g.gotLimit)
	}
	if edges[0].Confidence != common.ConfidenceHigh || edges[1].Confidence != common.ConfidenceUnverified {
		t.Fatalf("unexpected labels %+v", edges)
	}
}

func TestSearchPapersByEntities(t *testing.T) {
	g := &fakeGraph{matches: []store.PaperMatch{{Paper: common.Paper{PMID: "1"}, MatchingEntities: 2}}}
	s := NewService(NewServiceParams{Graph: g})

	got, err := s.SearchPapersByEntities(context.Background(), []string{"Microgravity", " microgravity ", "Bone Loss", ""}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if !reflect.DeepEqual(g.gotNames, []string{"Microgravity", "Bone Loss"}) {
		t.Fatalf("names = %v", g.gotNames)
	}
	if g.gotMinMatches != 2 || g.gotLimit != defaultPaperLimit {
		t.Fatalf("min matches = %d, limit = %d", g.gotMinMatches, g.gotLimit)
	}
}

func TestSearchPapersByEntitiesNeedsTwoNames(t *testing.T) {
	g := &fakeGraph{err: errors.New("should not be called")}
	s := NewService(NewServiceParams{Graph: g})

	got, err := s.SearchPapersByEntities(context.Background(), []string{"Microgravity", "MICROGRAVITY"}, 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v, %v", got, err)
	}
}
