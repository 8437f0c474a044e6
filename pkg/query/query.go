package query

import (
	"context"

	"github.com/NimaFathima/astrobiomers/pkg/ai"
	"github.com/NimaFathima/astrobiomers/pkg/common"
)

// Answerer answers natural language questions from the knowledge graph.
// An answer is always produced; retrieval and LLM failures degrade it
// instead of surfacing as errors.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question string, opts ...AskOption) common.RAGResponse
}

type AskOptions struct {
	MaxPapers       int
	IncludeSnippets bool
	Tracer          Tracer
	// History holds earlier turns of a conversation, oldest first.
	History []ai.ChatMessage
}

// AskOption is a functional option for a single question.
type AskOption func(*AskOptions)

// WithMaxPapers bounds how many papers are retrieved for the answer.
func WithMaxPapers(n int) AskOption {
	return func(o *AskOptions) {
		if n > 0 {
			o.MaxPapers = n
		}
	}
}

// WithSnippets controls whether abstract snippets are added to the LLM
// context.
func WithSnippets(include bool) AskOption {
	return func(o *AskOptions) {
		o.IncludeSnippets = include
	}
}

func WithTracer(t Tracer) AskOption {
	return func(o *AskOptions) {
		o.Tracer = t
	}
}

// WithHistory passes earlier conversation turns to the LLM.
func WithHistory(history []ai.ChatMessage) AskOption {
	return func(o *AskOptions) {
		o.History = history
	}
}

// ApplyAskOptions folds opts over the defaults of 10 papers with snippets.
func ApplyAskOptions(opts ...AskOption) AskOptions {
	o := AskOptions{MaxPapers: 10, IncludeSnippets: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
