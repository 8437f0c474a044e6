package rag

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NimaFathima/astrobiomers/pkg/ai"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/query"
	"github.com/NimaFathima/astrobiomers/pkg/store"
)

type fakeGraph struct {
	store.GraphStorage

	entities []store.GraphNode
	contexts map[string]store.EntityContext
	random   []common.Paper
	err      error
}

func (f *fakeGraph) FindEntities(_ context.Context, _ []string, _ int) ([]store.GraphNode, error) {
	return f.entities, f.err
}

func (f *fakeGraph) EntityContext(_ context.Context, id string, _ []store.NodeType, _, _ int) (store.EntityContext, error) {
	ec, ok := f.contexts[id]
	if !ok {
		return store.EntityContext{}, store.ErrNotFound
	}
	return ec, nil
}

func (f *fakeGraph) RandomPapers(_ context.Context, n int) ([]common.Paper, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.random) > n {
		return f.random[:n], nil
	}
	return f.random, nil
}

type fakeLLM struct {
	ai.GraphAIClient

	mu       sync.Mutex
	answers  []string
	errs     []error
	calls    int
	prompt   string
	options  ai.GenerateOptions
	history  []ai.ChatMessage
	provider string
}

func (f *fakeLLM) GenerateCompletion(_ context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	f.prompt = prompt
	f.options = ai.ApplyOptions(ai.GenerateOptions{}, opts...)

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.answers) {
		return f.answers[i], nil
	}
	return "", nil
}

func (f *fakeLLM) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	f.history = messages
	f.mu.Unlock()
	return f.GenerateCompletion(ctx, messages[len(messages)-1].Message, opts...)
}

func (f *fakeLLM) Provider() string {
	return f.provider
}

func entity(labels []string, id, name string) store.GraphNode {
	return store.NewGraphNode(labels, map[string]any{"id": id, "name": name})
}

func microgravityGraph() *fakeGraph {
	mg := entity([]string{"Entity", "Stressor"}, "stressor:microgravity", "Microgravity")
	return &fakeGraph{
		entities: []store.GraphNode{mg},
		contexts: map[string]store.EntityContext{
			mg.ID: {
				Entity: mg,
				Papers: []common.Paper{
					{PMID: "111", Title: "Microgravity induces bone loss in mice during long duration spaceflight", Abstract: strings.Repeat("a", 700), PublicationYear: 2020},
					{PMID: "", DOI: "10.1/x", Title: "Osteoclast activity in orbit"},
				},
				Related: []store.RelatedNode{
					{Node: entity([]string{"Entity", "Phenotype"}, "phenotype:bone loss", "Bone Loss"), RelType: "CAUSES"},
					{Node: entity([]string{"Entity", "Gene"}, "gene:sost", "SOST")},
				},
			},
		},
	}
}

func TestExtractCues(t *testing.T) {
	tests := []struct {
		question string
		want     []string
	}{
		{"What are the effects of microgravity on bone density?", []string{"Microgravity", "Bone Density", "What"}},
		{"How does spaceflight affect the immune system of astronauts on the ISS mission?", []string{"Spaceflight", "Immune System", "Astronaut", "Iss", "Mission"}},
		{"Microgravity and microgravity again", []string{"Microgravity"}},
		{"the mission failed", []string{"Mission"}},
		{"xyz_nonexistent_term_12345", []string{}},
	}
	for _, tt := range tests {
		if got := ExtractCues(tt.question); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractCues(%q) = %v, want %v", tt.question, got, tt.want)
		}
	}
}

func TestAnswerNonexistentTermFallsBack(t *testing.T) {
	o := NewOrchestrator(NewOrchestratorParams{Graph: &fakeGraph{}})

	res := o.AnswerQuestion(context.Background(), "xyz_nonexistent_term_12345")
	if res.Answer == "" {
		t.Fatalf("expected a non-empty answer")
	}
	if !strings.Contains(res.Answer, "couldn't find relevant research papers") {
		t.Fatalf("unexpected answer %q", res.Answer)
	}
	if len(res.Sources) != 0 {
		t.Fatalf("expected no sources, got %v", res.Sources)
	}
	if res.Metadata.LLMProvider != "none" || res.Metadata.PaperCount != 0 {
		t.Fatalf("unexpected metadata %+v", res.Metadata)
	}
}

func TestAnswerBuildsSubgraph(t *testing.T) {
	o := NewOrchestrator(NewOrchestratorParams{Graph: microgravityGraph()})
	trace := query.NewQueryTrace()

	res := o.AnswerQuestion(context.Background(), "what does microgravity do to bones?", query.WithTracer(trace))

	if len(res.Subgraph.Nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %+v", res.Subgraph.Nodes)
	}
	if len(res.Subgraph.Edges) != 4 {
		t.Fatalf("expected 4 edges, got %+v", res.Subgraph.Edges)
	}
	paper := res.Subgraph.Nodes[1]
	if paper.Type != "Paper" || len([]rune(paper.Label)) != 50 {
		t.Fatalf("paper node should be labelled with a 50 character title, got %+v", paper)
	}
	edgeTypes := map[string]int{}
	for _, e := range res.Subgraph.Edges {
		edgeTypes[e.Type]++
	}
	if edgeTypes["MENTIONS"] != 2 || edgeTypes["CAUSES"] != 1 || edgeTypes["ASSOCIATED_WITH"] != 1 {
		t.Fatalf("unexpected edge types %v", edgeTypes)
	}

	if len(res.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(res.Sources))
	}
	if res.Sources[0].URL != "https://pubmed.ncbi.nlm.nih.gov/111" || res.Sources[0].Type != "research_paper" {
		t.Fatalf("unexpected source %+v", res.Sources[0])
	}
	if res.Sources[1].ID != "unknown" || res.Sources[1].URL != "" {
		t.Fatalf("source without pmid should have no url, got %+v", res.Sources[1])
	}

	if !strings.Contains(res.Answer, "1. Microgravity induces bone loss") || !strings.Contains(res.Answer, "(2020)") {
		t.Fatalf("fallback answer should list papers, got %q", res.Answer)
	}
	if !strings.Contains(res.Answer, "(Unknown)") {
		t.Fatalf("missing year should read Unknown, got %q", res.Answer)
	}
	if res.Metadata.EntityCount != 1 || res.Metadata.PaperCount != 2 {
		t.Fatalf("unexpected metadata %+v", res.Metadata)
	}

	snap := trace.Snapshot()
	if !reflect.DeepEqual(snap.Cues, []string{"Microgravity"}) {
		t.Fatalf("trace cues = %v", snap.Cues)
	}
	if !reflect.DeepEqual(snap.QueriedEntityIDs, []string{"stressor:microgravity"}) {
		t.Fatalf("trace entity ids = %v", snap.QueriedEntityIDs)
	}
}

func TestAnswerRespectsMaxPapers(t *testing.T) {
	o := NewOrchestrator(NewOrchestratorParams{Graph: microgravityGraph()})

	res := o.AnswerQuestion(context.Background(), "microgravity", query.WithMaxPapers(1))
	if len(res.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(res.Sources))
	}
	if res.Metadata.PaperCount != 2 {
		t.Fatalf("paper count should report every retrieved paper, got %d", res.Metadata.PaperCount)
	}
}

func TestAnswerWithoutCuesSamplesPapers(t *testing.T) {
	g := &fakeGraph{random: []common.Paper{{PMID: "1", Title: "first sample"}, {PMID: "2", Title: "second sample"}, {PMID: "3", Title: "c"}}}
	llm := &fakeLLM{provider: "openai", answers: []string{"background answer"}}
	o := NewOrchestrator(NewOrchestratorParams{Graph: g, AIClient: llm})

	res := o.AnswerQuestion(context.Background(), "what happens up there?", query.WithMaxPapers(2))
	if len(res.Sources) != 0 || res.Metadata.PaperCount != 0 {
		t.Fatalf("sampled papers must not become sources, got %+v %+v", res.Sources, res.Metadata)
	}
	if len(res.Subgraph.Nodes) != 0 {
		t.Fatalf("sampled papers should not produce nodes")
	}
	if !strings.Contains(llm.prompt, "first sample") || !strings.Contains(llm.prompt, "second sample") {
		t.Fatalf("sampled papers should reach the prompt:\n%s", llm.prompt)
	}
}

func TestAnswerNonexistentTermOnPopulatedGraph(t *testing.T) {
	g := &fakeGraph{random: []common.Paper{{PMID: "1", Title: "a"}, {PMID: "2", Title: "b"}}}
	o := NewOrchestrator(NewOrchestratorParams{Graph: g})

	res := o.AnswerQuestion(context.Background(), "xyz_nonexistent_term_12345")
	if len(res.Sources) != 0 {
		t.Fatalf("expected no sources, got %v", res.Sources)
	}
	if !strings.Contains(res.Answer, "couldn't find relevant research papers") {
		t.Fatalf("unexpected answer %q", res.Answer)
	}
}

func TestAnswerStoreFailureDegrades(t *testing.T) {
	o := NewOrchestrator(NewOrchestratorParams{Graph: &fakeGraph{err: errors.New("connection refused")}})

	res := o.AnswerQuestion(context.Background(), "What about Microgravity?")
	if res.Answer == "" || len(res.Sources) != 0 {
		t.Fatalf("expected fallback answer without sources, got %+v", res)
	}
	if res.Subgraph.Nodes == nil || res.Subgraph.Edges == nil {
		t.Fatalf("subgraph slices should be empty, not nil")
	}
}

func TestAnswerWithLLM(t *testing.T) {
	llm := &fakeLLM{provider: "openai", answers: []string{"  Microgravity causes bone loss (2020).  "}}
	o := NewOrchestrator(NewOrchestratorParams{Graph: microgravityGraph(), AIClient: llm})

	res := o.AnswerQuestion(context.Background(), "what does microgravity do?")
	if res.Answer != "Microgravity causes bone loss (2020)." {
		t.Fatalf("unexpected answer %q", res.Answer)
	}
	if res.Metadata.LLMProvider != "openai" {
		t.Fatalf("provider = %q", res.Metadata.LLMProvider)
	}
	if llm.options.Temperature != answerTemperature || len(llm.options.SystemPrompts) != 1 {
		t.Fatalf("unexpected options %+v", llm.options)
	}
	for _, want := range []string{"Relevant entities: Microgravity, Bone Loss, SOST", "Research papers:", "Evidence:", "Question: what does microgravity do?"} {
		if !strings.Contains(llm.prompt, want) {
			t.Fatalf("prompt is missing %q:\n%s", want, llm.prompt)
		}
	}
}

func TestAnswerWithoutSnippets(t *testing.T) {
	llm := &fakeLLM{provider: "ollama", answers: []string{"ok"}}
	o := NewOrchestrator(NewOrchestratorParams{Graph: microgravityGraph(), AIClient: llm})

	o.AnswerQuestion(context.Background(), "microgravity?", query.WithSnippets(false))
	if strings.Contains(llm.prompt, "Evidence:") {
		t.Fatalf("snippets should be left out:\n%s", llm.prompt)
	}
}

func TestLLMRetriesOnce(t *testing.T) {
	llm := &fakeLLM{provider: "openai", errs: []error{errors.New("timeout")}, answers: []string{"", "second try"}}
	o := NewOrchestrator(NewOrchestratorParams{Graph: microgravityGraph(), AIClient: llm})

	res := o.AnswerQuestion(context.Background(), "microgravity?")
	if res.Answer != "second try" || llm.calls != 2 {
		t.Fatalf("answer = %q after %d calls", res.Answer, llm.calls)
	}
}

func TestLLMFailureFallsBack(t *testing.T) {
	llm := &fakeLLM{provider: "openai", errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	o := NewOrchestrator(NewOrchestratorParams{Graph: &fakeGraph{}, AIClient: llm, LLMTimeout: time.Second})
	trace := query.NewQueryTrace()

	res := o.AnswerQuestion(context.Background(), "xyz_nonexistent_term_12345", query.WithTracer(trace))
	if llm.calls != defaultLLMAttempts {
		t.Fatalf("expected %d attempts, got %d", defaultLLMAttempts, llm.calls)
	}
	if !strings.Contains(res.Answer, "couldn't find") {
		t.Fatalf("expected fallback answer, got %q", res.Answer)
	}
	if len(trace.Snapshot().LLMErrors) != 1 {
		t.Fatalf("fallback should be traced")
	}
}

func TestBuildContextBudget(t *testing.T) {
	sub := subgraph{
		nodes: []common.SubgraphNode{{ID: "a", Label: "Microgravity", Type: "Stressor"}},
		papers: []common.Paper{
			{Title: "First", PublicationYear: 2020},
			{Title: "Second", PublicationYear: 2021},
		},
	}
	snips := []snippet{{title: "First", text: strings.Repeat("bone ", 400)}}

	full := buildContext(sub, snips, 100000)
	if !strings.Contains(full, "Evidence:") || !strings.Contains(full, "- Second (2021)") {
		t.Fatalf("unexpected full context:\n%s", full)
	}

	tight := buildContext(sub, snips, 20)
	if strings.Contains(tight, "Evidence:") {
		t.Fatalf("snippet should not fit a 20 token budget:\n%s", tight)
	}
	if !strings.Contains(tight, "Relevant entities: Microgravity") {
		t.Fatalf("entities should fit:\n%s", tight)
	}

	if got := buildContext(sub, snips, 0); got != "" {
		t.Fatalf("zero budget should give an empty context, got %q", got)
	}
}
