package loader

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
)

func TestFormatOf(t *testing.T) {
	tests := map[string]CorpusFormat{
		"papers.json":          CorpusFormatJSON,
		"papers.jsonl":         CorpusFormatJSONL,
		"ingest/abc.NDJSON":    CorpusFormatJSONL,
		"no-extension":         CorpusFormatJSON,
		"dir.jsonl/papers.txt": CorpusFormatJSON,
	}
	for in, want := range tests {
		if got := FormatOf(in); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParsePapersJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		pmids []string
	}{
		{
			name:  "array",
			input: `[{"pmid":"1","title":"A"},{"pmid":"2","title":"B"}]`,
			pmids: []string{"1", "2"},
		},
		{
			name:  "wrapped",
			input: `{"papers":[{"pmid":"3","title":"C"}]}`,
			pmids: []string{"3"},
		},
		{
			name:  "numeric pmid",
			input: `[{"pmid":12345678,"title":"D"}]`,
			pmids: []string{"12345678"},
		},
		{
			name:  "empty",
			input: "  \n",
			pmids: []string{},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			papers, err := ParsePapers([]byte(test.input), CorpusFormatJSON)
			if err != nil {
				t.Fatalf("ParsePapers: %v", err)
			}
			got := make([]string, 0, len(papers))
			for _, p := range papers {
				got = append(got, p.PMID)
			}
			if !reflect.DeepEqual(got, test.pmids) {
				t.Fatalf("pmids = %v, want %v", got, test.pmids)
			}
		})
	}
}

func TestParsePapersInvalidJSON(t *testing.T) {
	if _, err := ParsePapers([]byte(`[{"pmid":`), CorpusFormatJSON); err == nil {
		t.Fatalf("expected an error for truncated JSON")
	}
}

func TestParsePapersJSONL(t *testing.T) {
	input := `{"pmid":"1","title":"Microgravity and bone","publication_year":2019}

not json
{"pmid":"2","title":"Radiation","publication_date":"2021-03-01","authors":"Smith J, Doe A"}
`
	papers, err := ParsePapers([]byte(input), CorpusFormatJSONL)
	if err != nil {
		t.Fatalf("ParsePapers: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("got %d papers, want 2", len(papers))
	}
	if papers[0].PublicationYear != 2019 {
		t.Errorf("year = %d, want 2019", papers[0].PublicationYear)
	}
	if papers[1].PublicationYear != 2021 {
		t.Errorf("year from date = %d, want 2021", papers[1].PublicationYear)
	}
	if want := []string{"Smith J", "Doe A"}; !reflect.DeepEqual(papers[1].Authors, want) {
		t.Errorf("authors = %v, want %v", papers[1].Authors, want)
	}
}

func TestParsePapersNullFields(t *testing.T) {
	papers, err := ParsePapers([]byte(`[{"pmid":null,"title":" T ","publication_year":null,"authors":null,"mesh_terms":["Weightlessness"]}]`), CorpusFormatJSON)
	if err != nil {
		t.Fatalf("ParsePapers: %v", err)
	}
	p := papers[0]
	if p.PMID != "" || p.Title != "T" || p.PublicationYear != 0 || p.Authors != nil {
		t.Fatalf("unexpected paper %+v", p)
	}
	if !reflect.DeepEqual(p.MeshTerms, []string{"Weightlessness"}) {
		t.Fatalf("mesh terms = %v", p.MeshTerms)
	}
}

type countingLoader struct {
	calls atomic.Int32
	data  []byte
	err   error
}

func (l *countingLoader) GetFile(context.Context, string) ([]byte, error) {
	l.calls.Add(1)
	return l.data, l.err
}

func TestCorpusFileGetPapers(t *testing.T) {
	l := &countingLoader{data: []byte(`{"pmid":"7","title":"X"}` + "\n")}
	file := NewCorpusFile("corpus.jsonl", l)

	papers, err := file.GetPapers(context.Background())
	if err != nil {
		t.Fatalf("GetPapers: %v", err)
	}
	if len(papers) != 1 || papers[0].PMID != "7" {
		t.Fatalf("unexpected papers %+v", papers)
	}

	l.err = errors.New("boom")
	if _, err := file.GetPapers(context.Background()); err == nil {
		t.Fatalf("expected the loader error to surface")
	}
}

func TestFileCache(t *testing.T) {
	cache := NewFileCache(2, 0)
	var calls atomic.Int32
	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("data"), nil
	}

	for range 3 {
		got, err := cache.Get(context.Background(), "a", fetch)
		if err != nil || string(got) != "data" {
			t.Fatalf("Get = %q, %v", got, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch called %d times, want 1", calls.Load())
	}

	failing := func(context.Context) ([]byte, error) { return nil, errors.New("down") }
	if _, err := cache.Get(context.Background(), "b", failing); err == nil {
		t.Fatalf("expected fetch error")
	}
	if _, err := cache.Get(context.Background(), "b", fetch); err != nil {
		t.Fatalf("failed fetches must not be cached: %v", err)
	}
}
