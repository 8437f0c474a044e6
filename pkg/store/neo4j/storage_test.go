package neo4j

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type call struct {
	query  string
	params map[string]any
	read   bool
}

type fakeRunner struct {
	calls   []call
	results [][]*neo4jv5.Record
	err     error
}

func (f *fakeRunner) Run(_ context.Context, query string, params map[string]any, read bool) (*neo4jv5.EagerResult, error) {
	f.calls = append(f.calls, call{query, params, read})
	if f.err != nil {
		return nil, f.err
	}
	res := &neo4jv5.EagerResult{}
	if len(f.results) > 0 {
		res.Records = f.results[0]
		f.results = f.results[1:]
	}
	return res, nil
}

func record(kv ...any) *neo4jv5.Record {
	rec := &neo4jv5.Record{}
	for i := 0; i < len(kv); i += 2 {
		rec.Keys = append(rec.Keys, kv[i].(string))
		rec.Values = append(rec.Values, kv[i+1])
	}
	return rec
}

func TestUpsertPapersBatches(t *testing.T) {
	r := &fakeRunner{}
	s := NewGraphStorageWithRunner(r, 2)

	papers := []common.Paper{
		{PMID: "1", Title: "a"},
		{DOI: "10.1/b", Title: "b"},
		{Title: "c"},
	}
	if err := s.UpsertPapers(context.Background(), papers); err != nil {
		t.Fatal(err)
	}
	if len(r.calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(r.calls))
	}
	first := r.calls[0].params["batch"].([]any)
	second := r.calls[1].params["batch"].([]any)
	if len(first) != 2 || len(second) != 1 {
		t.Fatalf("batch sizes = %d, %d", len(first), len(second))
	}
	ids := []string{
		first[0].(map[string]any)["id"].(string),
		first[1].(map[string]any)["id"].(string),
		second[0].(map[string]any)["id"].(string),
	}
	if want := []string{"1", "10.1/b", "c"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	if r.calls[0].read {
		t.Fatal("upsert routed to readers")
	}
}

func TestUpsertEntitiesGroupsByLabel(t *testing.T) {
	r := &fakeRunner{}
	s := NewGraphStorageWithRunner(r, 100)

	err := s.UpsertEntities(context.Background(), []store.EntityRecord{
		{ID: "stressor:microgravity", Name: "Microgravity", Type: common.EntityStressor},
		{ID: "gene:sost", Name: "SOST", Type: common.EntityGene},
		{ID: "stressor:radiation", Name: "Radiation", Type: common.EntityStressor},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(r.calls))
	}
	if !strings.Contains(r.calls[0].query, "SET e:Stressor") || len(r.calls[0].params["batch"].([]any)) != 2 {
		t.Errorf("first call = %s", r.calls[0].query)
	}
	if !strings.Contains(r.calls[1].query, "SET e:Gene") {
		t.Errorf("second call = %s", r.calls[1].query)
	}
}

func TestUpsertRelationshipsSkipsUnknownTypes(t *testing.T) {
	r := &fakeRunner{}
	s := NewGraphStorageWithRunner(r, 100)

	err := s.UpsertRelationships(context.Background(), []store.RelationshipRecord{
		{SourceID: "a", TargetID: "b", Type: common.RelCauses},
		{SourceID: "a", TargetID: "b", Type: "DROP_ALL"},
		{SourceID: "c", TargetID: "d", Type: common.RelUpregulates},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(r.calls))
	}
	if !strings.Contains(r.calls[0].query, "[r:UPREGULATES]") || !strings.Contains(r.calls[1].query, "[r:CAUSES]") {
		t.Fatalf("queries = %q, %q", r.calls[0].query, r.calls[1].query)
	}
	for _, c := range r.calls {
		if strings.Contains(c.query, "DROP_ALL") {
			t.Fatal("unknown relationship type reached a query")
		}
	}
}

func TestFindEntitiesLowercasesTerms(t *testing.T) {
	r := &fakeRunner{results: [][]*neo4jv5.Record{{
		record("labels", []any{"Entity", "Stressor"}, "props", map[string]any{"id": "stressor:microgravity", "name": "Microgravity"}),
	}}}
	s := NewGraphStorageWithRunner(r, 100)

	got, err := s.FindEntities(context.Background(), []string{" Microgravity ", "", "microgravity"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Type != store.NodeStressor || got[0].Name() != "Microgravity" {
		t.Fatalf("FindEntities() = %+v", got)
	}
	if terms := r.calls[0].params["terms"].([]string); !reflect.DeepEqual(terms, []string{"microgravity"}) {
		t.Fatalf("terms = %v", terms)
	}
	if !r.calls[0].read {
		t.Fatal("read query routed to writers")
	}

	none, err := s.FindEntities(context.Background(), []string{"  "}, 10)
	if err != nil || len(none) != 0 || len(r.calls) != 1 {
		t.Fatalf("blank terms should not query: %v, %v, %d calls", none, err, len(r.calls))
	}
}

func TestGetNodeNotFound(t *testing.T) {
	s := NewGraphStorageWithRunner(&fakeRunner{}, 100)
	if _, err := s.GetNode(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestErrorsWrapUnavailable(t *testing.T) {
	s := NewGraphStorageWithRunner(&fakeRunner{err: errors.New("connection refused")}, 100)
	_, err := s.Statistics(context.Background())
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if err := s.EnsureSchema(context.Background()); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestNeighbors(t *testing.T) {
	center := map[string]any{"id": "stressor:microgravity", "name": "Microgravity"}
	paper := map[string]any{"id": "1", "title": "Bone loss"}
	pheno := map[string]any{"id": "phenotype:bone loss", "name": "Bone Loss"}

	r := &fakeRunner{results: [][]*neo4jv5.Record{{
		record(
			"labels", []any{"Entity", "Stressor"},
			"props", center,
			"rels", []any{
				map[string]any{
					"type":          "MENTIONS",
					"source_labels": []any{"Paper"}, "source_props": paper,
					"target_labels": []any{"Entity", "Stressor"}, "target_props": center,
				},
				map[string]any{
					"type":          "CAUSES",
					"source_labels": []any{"Entity", "Stressor"}, "source_props": center,
					"target_labels": []any{"Entity", "Phenotype"}, "target_props": pheno,
				},
			},
		),
	}}}
	s := NewGraphStorageWithRunner(r, 100)

	hood, err := s.Neighbors(context.Background(), "stressor:microgravity", 7, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.calls[0].query, "[*1..3]") {
		t.Fatalf("depth not clamped: %s", r.calls[0].query)
	}
	if hood.Center.ID != "stressor:microgravity" || len(hood.Nodes) != 2 || len(hood.Edges) != 2 {
		t.Fatalf("hood = %+v", hood)
	}
	if hood.Nodes[0].Type != store.NodePaper || hood.Nodes[1].Type != store.NodePhenotype {
		t.Fatalf("node types = %s, %s", hood.Nodes[0].Type, hood.Nodes[1].Type)
	}
	if hood.Edges[1] != (store.Edge{Source: "stressor:microgravity", Target: "phenotype:bone loss", Type: "CAUSES"}) {
		t.Fatalf("edge = %+v", hood.Edges[1])
	}
}

func TestEdgeEvidence(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		s := NewGraphStorageWithRunner(&fakeRunner{}, 100)
		rec, err := s.EdgeEvidence(context.Background(), "a", "b", "")
		if err != nil || rec != nil {
			t.Fatalf("EdgeEvidence() = %+v, %v; want nil, nil", rec, err)
		}
	})

	t.Run("present", func(t *testing.T) {
		r := &fakeRunner{results: [][]*neo4jv5.Record{{
			record(
				"source_labels", []any{"Entity", "Stressor"}, "source_props", map[string]any{"id": "a", "name": "Microgravity"},
				"target_labels", []any{"Entity", "Phenotype"}, "target_props", map[string]any{"id": "b", "name": "Bone Loss"},
				"type", "CAUSES",
				"rel_props", map[string]any{"confidence": 0.81},
				"papers", []any{
					map[string]any{"id": "1", "pmid": "1", "title": "One", "publication_year": int64(2019)},
					map[string]any{"id": "2", "pmid": "2", "title": "Two"},
				},
			),
		}}}
		s := NewGraphStorageWithRunner(r, 100)

		rec, err := s.EdgeEvidence(context.Background(), "a", "b", "CAUSES")
		if err != nil {
			t.Fatal(err)
		}
		if rec.Type != "CAUSES" || rec.Source.Name() != "Microgravity" || len(rec.Papers) != 2 {
			t.Fatalf("record = %+v", rec)
		}
		if rec.Papers[0].PublicationYear != 2019 {
			t.Fatalf("paper = %+v", rec.Papers[0])
		}
		if r.calls[0].params["rel_type"] != "CAUSES" {
			t.Fatalf("params = %v", r.calls[0].params)
		}
	})
}

func TestStatisticsResolvesLabels(t *testing.T) {
	r := &fakeRunner{results: [][]*neo4jv5.Record{
		{
			record("labels", []any{"Entity", "Gene"}, "count", int64(4)),
			record("labels", []any{"Gene", "Entity"}, "count", int64(1)),
			record("labels", []any{"Paper"}, "count", int64(10)),
		},
		{
			record("type", "MENTIONS", "count", int64(20)),
			record("type", "CAUSES", "count", int64(3)),
		},
	}}
	s := NewGraphStorageWithRunner(r, 100)

	got, err := s.Statistics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := store.Statistics{
		Nodes:              map[string]int64{"Gene": 5, "Paper": 10},
		TotalNodes:         15,
		Relationships:      map[string]int64{"MENTIONS": 20, "CAUSES": 3},
		TotalRelationships: 23,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Statistics() = %+v, want %+v", got, want)
	}
}
