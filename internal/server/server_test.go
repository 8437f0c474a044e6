package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NimaFathima/astrobiomers/internal/config"
	"github.com/NimaFathima/astrobiomers/internal/queue"
	mid "github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/evidence"
	"github.com/NimaFathima/astrobiomers/pkg/query/rag"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

type fakeGraph struct {
	store.GraphStorage

	edge    *store.EdgeRecord
	stats   store.Statistics
	nodes   []store.GraphNode
	collabs []store.Collaboration
	path    store.Path
	err     error

	entityQueries []store.EntityQuery
}

func (f *fakeGraph) SearchEntities(_ context.Context, q store.EntityQuery) ([]store.GraphNode, error) {
	f.entityQueries = append(f.entityQueries, q)
	return f.nodes, f.err
}

func (f *fakeGraph) SearchPapers(context.Context, string, int, int) ([]common.Paper, error) {
	return nil, f.err
}

func (f *fakeGraph) Collaborations(context.Context, string, int) ([]store.Collaboration, error) {
	return f.collabs, f.err
}

func (f *fakeGraph) ShortestPath(context.Context, string, string, int) (store.Path, error) {
	return f.path, f.err
}

func (f *fakeGraph) FindEntities(context.Context, []string, int) ([]store.GraphNode, error) {
	return nil, f.err
}

func (f *fakeGraph) RandomPapers(context.Context, int) ([]common.Paper, error) {
	return nil, f.err
}

func (f *fakeGraph) EdgeEvidence(context.Context, string, string, string) (*store.EdgeRecord, error) {
	return f.edge, f.err
}

func (f *fakeGraph) EdgesByPaperCount(context.Context, int) ([]common.EdgeEvidence, error) {
	return nil, f.err
}

func (f *fakeGraph) Statistics(context.Context) (store.Statistics, error) {
	return f.stats, f.err
}

type fakePublisher struct {
	keys   []string
	bodies [][]byte
}

func (f *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	f.keys = append(f.keys, key)
	f.bodies = append(f.bodies, msg.Body)
	return nil
}

func newTestApp(g *fakeGraph) *mid.App {
	cfg := config.FromEnv()
	orchestrator := rag.NewOrchestrator(rag.NewOrchestratorParams{Graph: g})
	return &mid.App{
		Config:        cfg,
		Graph:         g,
		Evidence:      evidence.NewService(evidence.NewServiceParams{Graph: g}),
		RAG:           orchestrator,
		Conversations: rag.NewConversations(orchestrator, rag.NewSessionStore(10, 0)),
	}
}

func do(e *echo.Echo, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e := NewEcho(newTestApp(&fakeGraph{}))
	rec := do(e, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestAskQuestionValidation(t *testing.T) {
	e := NewEcho(newTestApp(&fakeGraph{}))

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "too short", body: `{"question":"hi"}`, want: http.StatusBadRequest},
		{name: "missing", body: `{}`, want: http.StatusBadRequest},
		{name: "max papers out of range", body: `{"question":"What does microgravity do?","max_papers":0}`, want: http.StatusBadRequest},
		{name: "malformed json", body: `{"question":`, want: http.StatusBadRequest},
		{name: "valid", body: `{"question":"What does microgravity do to bone?"}`, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/chat/ask", tt.body, nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAskQuestionFallbackAnswer(t *testing.T) {
	e := NewEcho(newTestApp(&fakeGraph{}))
	rec := do(e, http.MethodPost, "/api/chat/ask?trace=true", `{"question":"What does microgravity do to bone?"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var res struct {
		Question string          `json:"question"`
		Answer   string          `json:"answer"`
		Trace    json.RawMessage `json:"trace"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Question != "What does microgravity do to bone?" {
		t.Fatalf("question = %q", res.Question)
	}
	if res.Answer == "" {
		t.Fatalf("expected a fallback answer")
	}
	if len(res.Trace) == 0 {
		t.Fatalf("expected a trace with trace=true")
	}
}

func TestChatHealthWithoutLLM(t *testing.T) {
	e := NewEcho(newTestApp(&fakeGraph{}))
	rec := do(e, http.MethodGet, "/api/chat/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res["has_llm"] != false {
		t.Fatalf("has_llm = %v", res["has_llm"])
	}
}

func TestConversationNotFound(t *testing.T) {
	e := NewEcho(newTestApp(&fakeGraph{}))

	rec := do(e, http.MethodGet, "/api/chat/conversations/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get status = %d, want 404", rec.Code)
	}

	rec = do(e, http.MethodPost, "/api/chat/conversations/nope/ask", `{"question":"What is known about bone loss?"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("ask status = %d, want 404", rec.Code)
	}
}

func TestConversationFlow(t *testing.T) {
	e := NewEcho(newTestApp(&fakeGraph{}))

	rec := do(e, http.MethodPost, "/api/chat/conversations", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d", rec.Code)
	}
	var conv rag.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if conv.ID == "" {
		t.Fatalf("expected a conversation id")
	}

	rec = do(e, http.MethodPost, "/api/chat/conversations/"+conv.ID+"/ask", `{"question":"What is known about bone loss?"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ask status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/api/chat/conversations/"+conv.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(conv.History) != 1 {
		t.Fatalf("history = %d, want 1", len(conv.History))
	}
}

func TestEdgeEvidence(t *testing.T) {
	e := NewEcho(newTestApp(&fakeGraph{}))

	rec := do(e, http.MethodPost, "/api/evidence/edge", `{"source_id":"a"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing target status = %d", rec.Code)
	}

	rec = do(e, http.MethodPost, "/api/evidence/edge", `{"source_id":"a","target_id":"b"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var record common.EvidenceRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.Found {
		t.Fatalf("absent edge reported as found")
	}
}

func TestEvidenceUnavailable(t *testing.T) {
	e := NewEcho(newTestApp(&fakeGraph{err: errors.New("connection refused")}))

	rec := do(e, http.MethodPost, "/api/evidence/edge", `{"source_id":"a","target_id":"b"}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("edge status = %d, want 503", rec.Code)
	}
	rec = do(e, http.MethodGet, "/api/evidence/all-edges", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("all-edges status = %d, want 503", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("backend error leaked: %s", rec.Body.String())
	}
}

func TestAllEdgesLimit(t *testing.T) {
	e := NewEcho(newTestApp(&fakeGraph{}))

	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: http.StatusOK},
		{query: "?limit=10", want: http.StatusOK},
		{query: "?limit=0", want: http.StatusBadRequest},
		{query: "?limit=501", want: http.StatusBadRequest},
		{query: "?limit=abc", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := do(e, http.MethodGet, "/api/evidence/all-edges"+tt.query, "", nil)
		if rec.Code != tt.want {
			t.Fatalf("limit %q: status = %d, want %d", tt.query, rec.Code, tt.want)
		}
		if tt.want == http.StatusOK && strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Fatalf("limit %q: body = %s, want []", tt.query, rec.Body.String())
		}
	}
}

func TestSearchPapersByEntitiesNeedsTwo(t *testing.T) {
	e := NewEcho(newTestApp(&fakeGraph{}))
	rec := do(e, http.MethodPost, "/api/evidence/papers-by-entities", `{"entities":["bone"]}`, nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestGraphStatistics(t *testing.T) {
	g := &fakeGraph{stats: store.Statistics{
		Nodes:              map[string]int64{"Paper": 3, "Gene": 2},
		TotalNodes:         5,
		Relationships:      map[string]int64{"MENTIONS": 4},
		TotalRelationships: 4,
	}}
	e := NewEcho(newTestApp(g))

	rec := do(e, http.MethodGet, "/api/graph/statistics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats store.Statistics
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalNodes != 5 || stats.Nodes["Gene"] != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestCorpusDisabled(t *testing.T) {
	e := NewEcho(newTestApp(&fakeGraph{}))

	rec := do(e, http.MethodGet, "/api/papers", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("papers status = %d, want 503", rec.Code)
	}
	rec = do(e, http.MethodPost, "/api/papers/similar", `{"query":"bone loss"}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("similar status = %d, want 503", rec.Code)
	}
}

func TestPipelineAuth(t *testing.T) {
	a := newTestApp(&fakeGraph{})
	a.MasterAPIKey = "secret"
	pub := &fakePublisher{}
	a.Queue = pub
	e := NewEcho(a)

	body := `{"papers":[{"pmid":"1","title":"Bone loss in spaceflight","abstract":"Microgravity induces bone loss."}]}`

	rec := do(e, http.MethodPost, "/api/pipeline/ingest", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}

	rec = do(e, http.MethodPost, "/api/pipeline/ingest", body, map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d, want 401", rec.Code)
	}

	rec = do(e, http.MethodPost, "/api/pipeline/ingest", body, map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var res struct {
		JobID      string `json:"job_id"`
		Status     string `json:"status"`
		PaperCount int    `json:"paper_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.JobID == "" || res.Status != string(store.JobQueued) || res.PaperCount != 1 {
		t.Fatalf("response = %+v", res)
	}

	if len(pub.keys) != 1 || pub.keys[0] != queue.IngestQueue {
		t.Fatalf("published to %v", pub.keys)
	}
	msg, err := queue.DecodeIngestMsg(pub.bodies[0])
	if err != nil {
		t.Fatalf("decode published message: %v", err)
	}
	if msg.JobID != res.JobID || len(msg.Papers) != 1 || msg.Papers[0].PMID != "1" {
		t.Fatalf("message = %+v", msg)
	}
}

func TestPipelineWithoutQueue(t *testing.T) {
	a := newTestApp(&fakeGraph{})
	a.MasterAPIKey = "secret"
	e := NewEcho(a)

	rec := do(e, http.MethodPost, "/api/pipeline/ingest", `{"papers":[{"pmid":"1","title":"t"}]}`,
		map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	rec = do(e, http.MethodGet, "/api/pipeline/jobs/abc", "", map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("job status = %d, want 503", rec.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	e := echo.New()
	a := &mid.App{}
	handler := mid.RequirePermission(mid.PermissionIngest)(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	tests := []struct {
		name string
		user *mid.AppUser
		want int
	}{
		{name: "no user", user: nil, want: http.StatusUnauthorized},
		{name: "missing permission", user: &mid.AppUser{Subject: "u", Role: "user", Permissions: []string{mid.PermissionJobView}}, want: http.StatusForbidden},
		{name: "granted", user: &mid.AppUser{Subject: "u", Role: "user", Permissions: []string{mid.PermissionIngest}}, want: http.StatusNoContent},
		{name: "admin", user: &mid.AppUser{Subject: "u", Role: "admin"}, want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			rec := httptest.NewRecorder()
			c := &mid.AppContext{Context: e.NewContext(req, rec), App: a, User: tt.user}
			if err := handler(c); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestQueryParamValidation(t *testing.T) {
	e := NewEcho(newTestApp(&fakeGraph{}))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "paper search without q", method: http.MethodGet, path: "/api/search/papers"},
		{name: "unknown entity type", method: http.MethodGet, path: "/api/search/entities?q=bone&type=planet"},
		{name: "paper is not an entity type", method: http.MethodGet, path: "/api/entities?type=paper"},
		{name: "unknown metric", method: http.MethodGet, path: "/api/analytics/top-entities?metric=citations"},
		{name: "co-occurrence without entity", method: http.MethodGet, path: "/api/analytics/co-occurrence"},
		{name: "reversed years", method: http.MethodGet, path: "/api/trends/timeline?start_year=2020&end_year=2010"},
		{name: "path to itself", method: http.MethodGet, path: "/api/graph/path/a/a"},
		{name: "path too long", method: http.MethodGet, path: "/api/graph/path/a/b?max_length=11"},
		{name: "search without query", method: http.MethodPost, path: "/api/search", body: `{"query":""}`},
		{name: "search with unknown type", method: http.MethodPost, path: "/api/search", body: `{"query":"bone","entity_type":"planet"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, tt.method, tt.path, tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestEntityQueries(t *testing.T) {
	tests := []struct {
		path string
		want store.EntityQuery
	}{
		{path: "/api/entities?type=gene&limit=5", want: store.EntityQuery{Type: store.NodeGene, Limit: 5}},
		{path: "/api/search/entities?q=bone&offset=20", want: store.EntityQuery{Text: "bone", Limit: 20, Offset: 20}},
		{path: "/api/search/autocomplete?q=micro", want: store.EntityQuery{Text: "micro", Prefix: true, Limit: 10}},
	}
	for _, tt := range tests {
		g := &fakeGraph{}
		e := NewEcho(newTestApp(g))
		rec := do(e, http.MethodGet, tt.path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.path, rec.Code)
		}
		if len(g.entityQueries) != 1 || g.entityQueries[0] != tt.want {
			t.Fatalf("%s: queries = %+v, want %+v", tt.path, g.entityQueries, tt.want)
		}
	}
}

func TestAutocompleteUnavailable(t *testing.T) {
	g := &fakeGraph{err: fmt.Errorf("%w: search entities: %w", store.ErrUnavailable, errors.New("connection refused"))}
	e := NewEcho(newTestApp(g))

	rec := do(e, http.MethodGet, "/api/search/autocomplete?q=micro", "", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"suggestions":[]}` {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/api/search/entities?q=micro", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("search status = %d, want 503", rec.Code)
	}
}

func TestEntityTypeDistribution(t *testing.T) {
	g := &fakeGraph{stats: store.Statistics{
		Nodes:         map[string]int64{"Paper": 3, "Gene": 1, "Stressor": 3},
		Relationships: map[string]int64{"MENTIONS": 9, "CAUSES": 2},
	}}
	e := NewEcho(newTestApp(g))

	rec := do(e, http.MethodGet, "/api/analytics/entity-type-distribution", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Distribution  []store.TypeShare `json:"distribution"`
		TotalEntities int64             `json:"total_entities"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []store.TypeShare{
		{Type: "Stressor", Count: 3, Percentage: 75},
		{Type: "Gene", Count: 1, Percentage: 25},
	}
	if body.TotalEntities != 4 || !reflect.DeepEqual(body.Distribution, want) {
		t.Fatalf("body = %+v", body)
	}

	rec = do(e, http.MethodGet, "/api/analytics/relationship-type-distribution", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total_relationships":2`) {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestCollaborationNetwork(t *testing.T) {
	g := &fakeGraph{collabs: []store.Collaboration{
		{Source: "Smith J", Target: "Lee K", Papers: 3},
		{Source: "Smith J", Target: "Abe T", Papers: 2},
	}}
	e := NewEcho(newTestApp(g))

	rec := do(e, http.MethodGet, "/api/trends/collaborations?author=smith", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Authors             []string `json:"authors"`
		TotalAuthors        int      `json:"total_authors"`
		TotalCollaborations int      `json:"total_collaborations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(body.Authors, []string{"Abe T", "Lee K", "Smith J"}) || body.TotalAuthors != 3 || body.TotalCollaborations != 2 {
		t.Fatalf("body = %+v", body)
	}
}

func TestShortestPathNotConnected(t *testing.T) {
	g := &fakeGraph{path: store.Path{Nodes: []store.GraphNode{}, Edges: []store.Edge{}}}
	e := NewEcho(newTestApp(g))

	rec := do(e, http.MethodGet, "/api/graph/path/a/b", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"found":false`) {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}
