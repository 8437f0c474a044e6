package rag

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/NimaFathima/astrobiomers/internal/util"
	"github.com/NimaFathima/astrobiomers/pkg/ai"
	"github.com/NimaFathima/astrobiomers/pkg/store"
)

const systemPrompt = `You are an expert space biology research assistant.
Answer questions based ONLY on the provided knowledge graph data and research papers.
Always cite your sources by mentioning the paper titles or years.
If the provided context does not contain enough information, say so clearly.
Be concise but informative.`

const userPrompt = `Context from knowledge graph and research papers:

%s

Question: %s

Please provide a clear, cited answer based on the above context.`

const (
	contextEntities = 10
	contextPapers   = 5
	contextSnippets = 3
)

var errEmptyAnswer = errors.New("llm returned an empty answer")

// buildContext renders the LLM context from the subgraph. Sections are
// added in order entities, papers, snippets and each line is kept only
// while the context stays within budget tokens.
func buildContext(sub subgraph, snips []snippet, budget int) string {
	used := 0
	fits := func(s string) bool {
		n := ai.CountTokens(s)
		if used+n > budget {
			return false
		}
		used += n
		return true
	}

	var parts []string

	var names []string
	for _, n := range sub.nodes {
		if n.Type == string(store.NodePaper) {
			continue
		}
		names = append(names, n.Label)
		if len(names) == contextEntities {
			break
		}
	}
	if len(names) > 0 {
		line := "Relevant entities: " + strings.Join(names, ", ")
		if fits(line) {
			parts = append(parts, line)
		}
	}

	var papers []string
	for i, p := range sub.papers {
		if i == contextPapers {
			break
		}
		line := fmt.Sprintf("- %s (%s)", p.Title, yearLabel(p.PublicationYear))
		if !fits(line) {
			break
		}
		papers = append(papers, line)
	}
	if len(papers) > 0 {
		parts = append(parts, "Research papers:\n"+strings.Join(papers, "\n"))
	}

	var evidence []string
	for i, s := range snips {
		if i == contextSnippets {
			break
		}
		line := fmt.Sprintf("[%s]: %s", s.title, s.text)
		if !fits(line) {
			break
		}
		evidence = append(evidence, line)
	}
	if len(evidence) > 0 {
		parts = append(parts, "Evidence:\n"+strings.Join(evidence, "\n\n"))
	}

	return strings.Join(parts, "\n\n")
}

// generate asks the LLM for a grounded answer. With history the question is
// sent as the last message of a chat. Every attempt is bounded by the LLM
// timeout.
func (o *Orchestrator) generate(
	ctx context.Context,
	question string,
	sub subgraph,
	snips []snippet,
	history []ai.ChatMessage,
) (string, error) {
	prompt := fmt.Sprintf(userPrompt, buildContext(sub, snips, o.contextTokens), question)
	opts := append([]ai.GenerateOption{
		ai.WithSystemPrompts(systemPrompt),
		ai.WithTemperature(answerTemperature),
	}, o.aiOptions...)

	var messages []ai.ChatMessage
	if len(history) > 0 {
		messages = append(slices.Clone(history), ai.ChatMessage{Role: "user", Message: prompt})
	}

	return util.RetryWithTimeout(ctx, o.llmAttempts, o.llmTimeout, func(ctx context.Context) (string, error) {
		var res string
		var err error
		if messages != nil {
			res, err = o.aiClient.GenerateChat(ctx, messages, opts...)
		} else {
			res, err = o.aiClient.GenerateCompletion(ctx, prompt, opts...)
		}
		if err != nil {
			return "", err
		}
		res = strings.TrimSpace(res)
		if res == "" {
			return "", errEmptyAnswer
		}
		return res, nil
	})
}
