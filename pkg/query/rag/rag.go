// Package rag answers questions from a knowledge graph subgraph, with an
// optional LLM for synthesis and a deterministic answer otherwise.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimaFathima/astrobiomers/internal/util"
	"github.com/NimaFathima/astrobiomers/pkg/ai"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/metrics"
	"github.com/NimaFathima/astrobiomers/pkg/query"
	"github.com/NimaFathima/astrobiomers/pkg/store"
)

const (
	defaultContextTokens = 3000
	defaultLLMTimeout    = 30 * time.Second
	defaultLLMAttempts   = 2

	answerTemperature = 0.3
	noProvider        = "none"
)

// Orchestrator implements query.Answerer over a graph store and an optional
// LLM client.
type Orchestrator struct {
	graph         store.GraphStorage
	aiClient      ai.GraphAIClient
	contextTokens int
	llmTimeout    time.Duration
	llmAttempts   int
	aiOptions     []ai.GenerateOption
}

// NewOrchestratorParams configures an Orchestrator. A nil AIClient answers
// every question with the deterministic fallback.
type NewOrchestratorParams struct {
	Graph         store.GraphStorage
	AIClient      ai.GraphAIClient
	ContextTokens int
	LLMTimeout    time.Duration
	LLMAttempts   int
	AIOptions     []ai.GenerateOption
}

func NewOrchestrator(params NewOrchestratorParams) *Orchestrator {
	o := &Orchestrator{
		graph:         params.Graph,
		aiClient:      params.AIClient,
		contextTokens: params.ContextTokens,
		llmTimeout:    params.LLMTimeout,
		llmAttempts:   params.LLMAttempts,
		aiOptions:     params.AIOptions,
	}
	if o.contextTokens <= 0 {
		o.contextTokens = defaultContextTokens
	}
	if o.llmTimeout <= 0 {
		o.llmTimeout = defaultLLMTimeout
	}
	if o.llmAttempts <= 0 {
		o.llmAttempts = defaultLLMAttempts
	}
	return o
}

// Provider names the LLM backend, or "none" in fallback mode.
func (o *Orchestrator) Provider() string {
	if o.aiClient == nil {
		return noProvider
	}
	return o.aiClient.Provider()
}

// HasLLM reports whether answers are synthesized by an LLM.
func (o *Orchestrator) HasLLM() bool {
	return o.aiClient != nil
}

func (o *Orchestrator) AnswerQuestion(ctx context.Context, question string, opts ...query.AskOption) common.RAGResponse {
	start := time.Now()
	options := query.ApplyAskOptions(opts...)
	tracer := options.Tracer

	logger.Info("[RAG] Processing question", "question", util.Truncate(question, 80))

	cues := ExtractCues(question)
	query.RecordCues(tracer, cues...)
	logger.Debug("[RAG] Extracted cues", "cues", cues)

	sub := o.retrieve(ctx, cues, options.MaxPapers, tracer)
	logger.Info("[RAG] Retrieved subgraph", "nodes", len(sub.nodes), "edges", len(sub.edges), "papers", sub.paperCount)

	var snips []snippet
	if options.IncludeSnippets {
		snips = snippets(sub.papers)
	}

	mode := "fallback"
	answer := ""
	if o.aiClient != nil {
		var err error
		answer, err = o.generate(ctx, question, sub, snips, options.History)
		if err != nil {
			logger.Warn("[RAG] LLM answer failed, using fallback", "err", err)
			metrics.LLMFallbacks.Inc()
			query.RecordLLMFallback(tracer, err)
			answer = ""
		} else {
			mode = "llm"
		}
	}
	if answer == "" {
		answer = fallbackAnswer(question, sub)
	}

	sources := []common.Source{}
	paperCount := 0
	if !sub.sampled {
		sources = formatSources(sub.papers)
		paperCount = sub.paperCount
	}
	used := make([]string, 0, len(sources))
	for _, s := range sources {
		used = append(used, s.ID)
	}
	query.RecordUsedSourceIDs(tracer, used...)

	metrics.RAGRequests.WithLabelValues(mode).Inc()
	metrics.RAGDuration.Observe(time.Since(start).Seconds())

	return common.RAGResponse{
		Question: question,
		Answer:   answer,
		Sources:  sources,
		Subgraph: common.Subgraph{Nodes: sub.nodes, Edges: sub.edges},
		Metadata: common.RAGMetadata{
			EntityCount: len(cues),
			PaperCount:  paperCount,
			LLMProvider: o.Provider(),
			Timestamp:   time.Now().UTC(),
		},
	}
}

const pubmedURL = "https://pubmed.ncbi.nlm.nih.gov/%s"

func formatSources(papers []common.Paper) []common.Source {
	sources := make([]common.Source, 0, len(papers))
	for _, p := range papers {
		s := common.Source{
			Type:  "research_paper",
			ID:    p.PMID,
			Title: p.Title,
			Year:  p.PublicationYear,
		}
		if s.ID == "" {
			s.ID = "unknown"
		} else {
			s.URL = fmt.Sprintf(pubmedURL, p.PMID)
		}
		if s.Title == "" {
			s.Title = "Unknown"
		}
		sources = append(sources, s)
	}
	return sources
}

func yearLabel(year int) string {
	if year == 0 {
		return "Unknown"
	}
	return fmt.Sprint(year)
}

const maxFallbackPapers = 5

// fallbackAnswer composes an answer from the subgraph alone.
func fallbackAnswer(question string, sub subgraph) string {
	if sub.paperCount == 0 || sub.sampled {
		return fmt.Sprintf(
			"I couldn't find relevant research papers in the knowledge graph for your question: '%s'. "+
				"Try rephrasing or using different keywords like 'microgravity', 'bone loss', or 'radiation'.",
			question,
		)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on %d research paper(s) in our knowledge graph:\n\n", sub.paperCount)
	for i, p := range sub.papers {
		if i == maxFallbackPapers {
			break
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, p.Title, yearLabel(p.PublicationYear))
	}
	fmt.Fprintf(&b, "\nThe knowledge graph shows %d related entities.\n", len(sub.nodes))
	b.WriteString("For a synthesized answer, configure an LLM adapter.")
	return b.String()
}
