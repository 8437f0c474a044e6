package ner

import (
	"context"
	"fmt"
	"strings"

	"github.com/NimaFathima/astrobiomers/pkg/ai"
	"github.com/NimaFathima/astrobiomers/pkg/common"
)

const transformerPrompt = `You are a biomedical named entity recognizer for space biology literature.
Tag every mention of a gene, protein, disease, chemical, species, cell type, tissue or pathway in the text.
Copy each mention exactly as it appears in the text, without changing case or spelling.
Use one of these labels: GENE, PROTEIN, DISEASE, CHEMICAL, SPECIES, CELL_TYPE, TISSUE, PATHWAY.
Score is your confidence between 0 and 1.`

// labelMap folds model labels onto the entity types stored in the graph.
var labelMap = map[string]common.EntityType{
	"PROTEIN":  common.EntityGene,
	"CHEMICAL": common.EntityMetabolite,
	"SPECIES":  common.EntityOrganism,
}

type transformerEntity struct {
	Text  string  `json:"text" jsonschema_description:"The mention copied verbatim from the text."`
	Label string  `json:"label" jsonschema_description:"Entity label."`
	Score float64 `json:"score" jsonschema_description:"Confidence between 0 and 1."`
}

type transformerResult struct {
	Entities []transformerEntity `json:"entities" jsonschema_description:"All entity mentions found in the text."`
}

// TransformerBackend runs token classification on a model behind an
// ai.GraphAIClient and maps the result back onto source offsets.
type TransformerBackend struct {
	client ai.GraphAIClient
	opts   []ai.GenerateOption
}

func NewTransformerBackend(client ai.GraphAIClient, opts ...ai.GenerateOption) *TransformerBackend {
	return &TransformerBackend{client: client, opts: opts}
}

func (t *TransformerBackend) Name() string {
	return "Transformer"
}

func (t *TransformerBackend) Extract(ctx context.Context, text string) ([]common.EntityMention, error) {
	var res transformerResult
	opts := append([]ai.GenerateOption{ai.WithSystemPrompts(transformerPrompt)}, t.opts...)
	if err := t.client.GenerateCompletionWithFormat(
		ctx,
		"entities",
		"Biomedical entity mentions",
		text,
		&res,
		opts...,
	); err != nil {
		return nil, fmt.Errorf("transformer extraction failed: %w", err)
	}

	seen := make(map[string]bool)
	var out []common.EntityMention
	for _, e := range res.Entities {
		mention := strings.TrimSpace(e.Text)
		if mention == "" || seen[mention] {
			continue
		}
		seen[mention] = true

		entityType := mapLabel(e.Label)
		score := e.Score
		if score <= 0 || score > 1 {
			score = 0.85
		}
		for _, loc := range locate(text, mention) {
			out = append(out, common.EntityMention{
				Text:       text[loc[0]:loc[1]],
				Type:       entityType,
				Start:      loc[0],
				End:        loc[1],
				Confidence: score,
				Source:     t.Name(),
			})
		}
	}
	return out, nil
}

func mapLabel(label string) common.EntityType {
	label = strings.ToUpper(strings.TrimSpace(label))
	if mapped, ok := labelMap[label]; ok {
		return mapped
	}
	return common.EntityType(label)
}

// locate returns the offsets of every occurrence of mention in text that is
// not glued to a surrounding letter or digit. Matching is exact first and
// case-insensitive when the exact form does not occur.
func locate(text, mention string) [][2]int {
	out := findAll(text, mention)
	if len(out) > 0 {
		return out
	}
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		return nil
	}
	return findAll(lower, strings.ToLower(mention))
}

func findAll(text, mention string) [][2]int {
	var out [][2]int
	if mention == "" || len(text) < len(mention) {
		return out
	}
	from := 0
	for from <= len(text)-len(mention) {
		idx := strings.Index(text[from:], mention)
		if idx < 0 {
			break
		}
		start := from + idx
		end := start + len(mention)
		if isBoundary(text, start-1) && isBoundary(text, end) {
			out = append(out, [2]int{start, end})
		}
		from = start + 1
	}
	return out
}

func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9')
}
