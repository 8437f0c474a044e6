package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/NimaFathima/astrobiomers/pkg/ai"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/ner"
	"github.com/NimaFathima/astrobiomers/pkg/store"
)

type fakeGraphStore struct {
	store.GraphStorage

	mu            sync.Mutex
	schema        int
	papers        []common.Paper
	entities      map[string]store.EntityRecord
	mentions      []store.Mention
	relationships []store.RelationshipRecord
	paperErr      error
}

func newFakeGraphStore() *fakeGraphStore {
	return &fakeGraphStore{entities: map[string]store.EntityRecord{}}
}

func (f *fakeGraphStore) EnsureSchema(context.Context) error {
	f.schema++
	return nil
}

func (f *fakeGraphStore) UpsertPapers(_ context.Context, papers []common.Paper) error {
	if f.paperErr != nil {
		return f.paperErr
	}
	f.papers = append(f.papers, papers...)
	return nil
}

func (f *fakeGraphStore) UpsertEntities(_ context.Context, entities []store.EntityRecord) error {
	for _, e := range entities {
		f.entities[e.ID] = e
	}
	return nil
}

func (f *fakeGraphStore) LinkMentions(_ context.Context, mentions []store.Mention) error {
	f.mentions = append(f.mentions, mentions...)
	return nil
}

func (f *fakeGraphStore) UpsertRelationships(_ context.Context, rels []store.RelationshipRecord) error {
	f.relationships = append(f.relationships, rels...)
	return nil
}

type fakeCorpus struct {
	store.PaperStorage
	papers []common.Paper
}

func (f *fakeCorpus) UpsertPapers(_ context.Context, papers []common.Paper) error {
	f.papers = append(f.papers, papers...)
	return nil
}

type fakeEmbedder struct {
	ai.GraphAIClient
}

func (fakeEmbedder) GenerateEmbedding(_ context.Context, input []byte) ([]float32, error) {
	return []float32{float32(len(input)), 1}, nil
}

func newClient(t *testing.T, aiClient ai.GraphAIClient, batchSize int) *GraphClient {
	t.Helper()
	entities, err := ner.NewExtractor(ner.NewExtractorParams{Threshold: 0.75})
	if err != nil {
		t.Fatalf("new ner extractor: %v", err)
	}
	g, err := NewGraphClient(NewGraphClientParams{
		Entities:            entities,
		AIClient:            aiClient,
		ConfidenceThreshold: 0.7,
		BatchSize:           batchSize,
	})
	if err != nil {
		t.Fatalf("new graph client: %v", err)
	}
	return g
}

func corpus() []common.Paper {
	return []common.Paper{
		{PMID: "1", Title: "Bone in orbit.", Abstract: "Microgravity induces bone loss."},
		{PMID: "2", Title: "Rodent study.", Abstract: "Microgravity induces bone loss."},
		{PMID: "1", Title: "Bone in orbit.", Abstract: "Microgravity induces bone loss."},
		{Title: ""},
	}
}

func TestNewGraphClientNeedsExtractor(t *testing.T) {
	if _, err := NewGraphClient(NewGraphClientParams{}); err == nil {
		t.Fatalf("expected an error without entity extractor")
	}
}

func TestProcessPapers(t *testing.T) {
	g := newClient(t, nil, 1)
	gs := newFakeGraphStore()
	cs := &fakeCorpus{}

	report, err := g.ProcessPapers(context.Background(), corpus(), gs, cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gs.schema != 1 {
		t.Fatalf("schema should be ensured once, got %d", gs.schema)
	}
	if report.Papers != 2 || len(gs.papers) != 2 || len(cs.papers) != 2 {
		t.Fatalf("duplicate papers should be dropped: report %d, graph %d, corpus %d", report.Papers, len(gs.papers), len(cs.papers))
	}
	if report.Embedded != 0 {
		t.Fatalf("nothing should be embedded without an ai client")
	}

	mg, ok := gs.entities["stressor:microgravity"]
	if !ok {
		t.Fatalf("missing microgravity entity, got %v", gs.entities)
	}
	if mg.Name != "Microgravity" || mg.Mentions != 2 {
		t.Fatalf("unexpected entity %+v", mg)
	}
	if _, ok := gs.entities["phenotype:bone loss"]; !ok {
		t.Fatalf("missing bone loss entity, got %v", gs.entities)
	}
	if len(gs.mentions) != 4 || report.Mentions != 4 {
		t.Fatalf("expected 4 mentions, got %d", len(gs.mentions))
	}

	if len(gs.relationships) == 0 || report.Relationships != len(gs.relationships) {
		t.Fatalf("expected stored relationships, report %d, stored %d", report.Relationships, len(gs.relationships))
	}
	for _, r := range gs.relationships {
		if r.Confidence < 0.7 {
			t.Fatalf("relationship below threshold stored: %+v", r)
		}
		if r.Type == common.RelAssociatedWith {
			t.Fatalf("co-occurrence relationship should not pass the threshold: %+v", r)
		}
		if _, ok := gs.entities[r.SourceID]; !ok {
			t.Fatalf("relationship source %q has no entity", r.SourceID)
		}
		if _, ok := gs.entities[r.TargetID]; !ok {
			t.Fatalf("relationship target %q has no entity", r.TargetID)
		}
		if r.Count != 2 || len(r.PMIDs) != 2 {
			t.Fatalf("relationship should be backed by both papers: %+v", r)
		}
	}
	if report.Aggregated <= report.Relationships {
		t.Fatalf("threshold should drop some aggregated relationships: %+v", report)
	}
	if report.NER.Successful != 2 || report.Relation.Successful != 2 {
		t.Fatalf("unexpected summaries %+v %+v", report.NER, report.Relation)
	}
}

func TestProcessPapersEmbedsAbstracts(t *testing.T) {
	g := newClient(t, fakeEmbedder{}, 10)
	cs := &fakeCorpus{}

	report, err := g.ProcessPapers(context.Background(), corpus(), newFakeGraphStore(), cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Embedded != 2 {
		t.Fatalf("expected 2 embedded papers, got %d", report.Embedded)
	}
	for _, p := range cs.papers {
		if len(p.Embedding) != 2 {
			t.Fatalf("paper %s has no embedding", p.PMID)
		}
	}
}

func TestProcessPapersStorageFailure(t *testing.T) {
	g := newClient(t, nil, 10)
	gs := newFakeGraphStore()
	gs.paperErr = store.ErrUnavailable

	_, err := g.ProcessPapers(context.Background(), corpus(), gs, nil)
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestExtract(t *testing.T) {
	g := newClient(t, nil, 1)

	ext := g.Extract(context.Background(), corpus())
	if len(ext.Entities.Items) != 2 || ext.TotalEntities != 4 {
		t.Fatalf("unexpected entities %d / %d", len(ext.Entities.Items), ext.TotalEntities)
	}
	if len(ext.Aggregated) == 0 || ext.Kept == 0 || ext.Kept > len(ext.Aggregated) {
		t.Fatalf("unexpected aggregation: %d aggregated, %d kept", len(ext.Aggregated), ext.Kept)
	}
	for i := 1; i < len(ext.Aggregated); i++ {
		if ext.Aggregated[i].FinalConfidence > ext.Aggregated[i-1].FinalConfidence {
			t.Fatalf("aggregated relationships should be sorted by confidence")
		}
	}
	if ext.Statistics.Total != len(ext.Relations.Items) {
		t.Fatalf("statistics total = %d, candidates = %d", ext.Statistics.Total, len(ext.Relations.Items))
	}
}

func TestDedupePapers(t *testing.T) {
	got := dedupePapers([]common.Paper{
		{PMID: "1", Title: "old"},
		{DOI: "10.1/x"},
		{PMID: "1", Title: "new"},
		{},
	})
	if len(got) != 2 || got[0].Title != "new" || got[1].DOI != "10.1/x" {
		t.Fatalf("unexpected papers %+v", got)
	}
}

func TestMentionsOfCountsRepeats(t *testing.T) {
	r := newResolver()
	pe := common.PaperEntities{
		Paper: common.Paper{PMID: "9"},
		Entities: []common.EntityMention{
			{Text: "zero-g", CanonicalName: "Microgravity", Type: common.EntityStressor, Confidence: 0.9},
			{Text: "microgravity", CanonicalName: "Microgravity", Type: common.EntityStressor, Confidence: 0.95},
			{Text: "bone loss", CanonicalName: "Bone Loss", Type: common.EntityPhenotype, Confidence: 0.88},
		},
	}

	mentions := mentionsOf(pe, r)
	if len(mentions) != 2 {
		t.Fatalf("expected 2 mentions, got %+v", mentions)
	}
	if mentions[0].Count != 2 || mentions[0].Confidence != 0.95 || mentions[0].PaperID != "9" {
		t.Fatalf("unexpected mention %+v", mentions[0])
	}

	records := r.flush()
	if len(records) != 2 || records[0].Mentions != 2 {
		t.Fatalf("unexpected records %+v", records)
	}
	if len(r.flush()) != 0 {
		t.Fatalf("second flush should be empty")
	}
}
