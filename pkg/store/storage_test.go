package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/NimaFathima/astrobiomers/pkg/ai"
	"github.com/NimaFathima/astrobiomers/pkg/common"
)

func TestResolveNodeType(t *testing.T) {
	tests := []struct {
		labels []string
		want   NodeType
	}{
		{[]string{"Paper"}, NodePaper},
		{[]string{"Entity", "Stressor"}, NodeStressor},
		{[]string{"Stressor", "Entity"}, NodeStressor},
		{[]string{"Phenotype", "Gene"}, NodeGene},
		{[]string{"Entity", "Topic"}, NodeType("Topic")},
		{[]string{"Entity"}, NodeEntity},
		{nil, NodeEntity},
	}
	for _, tc := range tests {
		if got := ResolveNodeType(tc.labels); got != tc.want {
			t.Errorf("ResolveNodeType(%v) = %q, want %q", tc.labels, got, tc.want)
		}
	}
}

func TestNodeTypeRoundTrip(t *testing.T) {
	for et, nt := range entityNodeTypes {
		if NodeTypeOf(et) != nt || nt.EntityType() != et {
			t.Errorf("%s <-> %s does not round trip", et, nt)
		}
	}
	if NodeTypeOf("SATELLITE") != NodeEntity {
		t.Error("unknown entity type should map to Entity")
	}
	if NodePaper.EntityType() != common.EntityUnknown {
		t.Error("Paper should not map to an entity type")
	}
}

func TestEntityID(t *testing.T) {
	if got := EntityID(common.EntityStressor, "  Microgravity "); got != "stressor:microgravity" {
		t.Fatalf("EntityID() = %q", got)
	}
	if EntityID(common.EntityGene, "SOST") == EntityID(common.EntityProtein, "SOST") {
		t.Fatal("ids of different types collide")
	}
}

func TestGraphNode(t *testing.T) {
	n := NewGraphNode([]string{"Paper"}, map[string]any{
		"id":               "123",
		"pmid":             "123",
		"title":            "Bone loss in mice",
		"publication_year": int64(2020),
		"authors":          []any{"A", "B"},
	})
	if !n.IsPaper() || n.ID != "123" || n.Name() != "Bone loss in mice" {
		t.Fatalf("node = %+v", n)
	}
	p := n.Paper()
	if p.PMID != "123" || p.PublicationYear != 2020 || !reflect.DeepEqual(p.Authors, []string{"A", "B"}) {
		t.Fatalf("Paper() = %+v", p)
	}

	e := NewGraphNode([]string{"Entity", "Gene"}, map[string]any{"id": "gene:sost", "symbol": "SOST"})
	if got := e.Entity(); got != (common.GraphEntity{ID: "gene:sost", Name: "SOST", Type: common.EntityGene}) {
		t.Fatalf("Entity() = %+v", got)
	}

	empty := NewGraphNode(nil, nil)
	if empty.Name() != "" || empty.Properties == nil {
		t.Fatalf("empty node = %+v", empty)
	}
}

func TestChunkRange(t *testing.T) {
	var got [][2]int
	err := ChunkRange(7, 3, func(start, end int) error {
		got = append(got, [2]int{start, end})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := [][2]int{{0, 3}, {3, 6}, {6, 7}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ChunkRange() = %v, want %v", got, want)
	}

	boom := errors.New("boom")
	calls := 0
	err = ChunkRange(10, 2, func(int, int) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestDedupeStrings(t *testing.T) {
	got := DedupeStrings([]string{"b", "", "a", "b", "a"})
	if want := []string{"b", "a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("DedupeStrings() = %v, want %v", got, want)
	}
}

type singleEmbedder struct {
	ai.GraphAIClient
}

func (singleEmbedder) GenerateEmbedding(_ context.Context, in []byte) ([]float32, error) {
	return []float32{float32(len(in))}, nil
}

func TestGenerateEmbeddingsFallsBackToSingleRequests(t *testing.T) {
	got, err := GenerateEmbeddings(context.Background(), singleEmbedder{}, []string{"a", "abc"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := [][]float32{{1}, {3}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("GenerateEmbeddings() = %v, want %v", got, want)
	}
	if _, err := GenerateEmbeddings(context.Background(), nil, []string{"a"}, 1); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestParseNodeType(t *testing.T) {
	tests := []struct {
		name string
		want NodeType
		ok   bool
	}{
		{"gene", NodeGene, true},
		{"CELLTYPE", NodeCellType, true},
		{"Stressor", NodeStressor, true},
		{"paper", "", false},
		{"Gene) DETACH DELETE (n", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := ParseNodeType(tc.name)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseNodeType(%q) = %q, %v, want %q, %v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDistribution(t *testing.T) {
	shares, total := Distribution(map[string]int64{
		"Paper":    10,
		"Gene":     1,
		"Stressor": 3,
		"Disease":  0,
	}, "Paper")
	if total != 4 {
		t.Fatalf("total = %d, want 4", total)
	}
	want := []TypeShare{
		{Type: "Stressor", Count: 3, Percentage: 75},
		{Type: "Gene", Count: 1, Percentage: 25},
	}
	if !reflect.DeepEqual(shares, want) {
		t.Fatalf("shares = %+v, want %+v", shares, want)
	}

	shares, total = Distribution(nil)
	if total != 0 || shares == nil || len(shares) != 0 {
		t.Fatalf("empty distribution = %v, %d", shares, total)
	}
}

func TestPairStrength(t *testing.T) {
	for n, want := range map[int64]string{2: "weak", 5: "moderate", 9: "moderate", 10: "strong"} {
		if got := PairStrength(n); got != want {
			t.Errorf("PairStrength(%d) = %q, want %q", n, got, want)
		}
	}
}
