// Package nlp turns free text into sentences and tagged tokens with
// character offsets and a shallow set of dependency arcs.
package nlp

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

// Dependency labels produced by the shallow parser.
const (
	DepNeg   = "neg"   // negation particle, Head is the negated word
	DepPunct = "punct" // punctuation
	DepMark  = "mark"  // subordinating word opening a new clause
	DepCC    = "cc"    // coordinating conjunction that contrasts clauses
	// DepAuxPass marks a form of "be" before a participle, Head is the
	// participle.
	DepAuxPass = "auxpass"
	// DepAgent marks the "by" introducing the agent of a passive participle,
	// Head is the participle.
	DepAgent = "agent"
)

// Token is a single word or punctuation mark. Start and End are byte
// offsets into Doc.Text.
type Token struct {
	Text     string
	Lower    string
	Lemma    string
	Tag      string
	Dep      string
	Head     int
	Start    int
	End      int
	Sentence int
}

// IsClauseBoundary reports whether the token separates two clauses of the
// same sentence.
func (t Token) IsClauseBoundary() bool {
	switch t.Dep {
	case DepMark, DepCC:
		return true
	}
	return t.Text == ";" || t.Text == ":"
}

// Sentence covers Text[Start:End] and the tokens Tokens[First:Last].
type Sentence struct {
	Text  string
	Start int
	End   int
	First int
	Last  int
}

type Doc struct {
	Text      string
	Sentences []Sentence
	Tokens    []Token
}

// IsPassive reports whether token i is a participle governed by a passive
// auxiliary.
func (d *Doc) IsPassive(i int) bool {
	for _, t := range d.Tokens {
		if t.Dep == DepAuxPass && t.Head == i {
			return true
		}
	}
	return false
}

// Agent returns the index of the "by" introducing the agent of participle
// i, or -1.
func (d *Doc) Agent(i int) int {
	for k, t := range d.Tokens {
		if t.Dep == DepAgent && t.Head == i {
			return k
		}
	}
	return -1
}

// TokenAt returns the index of the token starting at or covering offset,
// or -1.
func (d *Doc) TokenAt(offset int) int {
	for i, t := range d.Tokens {
		if offset >= t.Start && offset < t.End {
			return i
		}
		if t.Start > offset {
			break
		}
	}
	return -1
}

// SentenceAt returns the index of the sentence containing offset, or -1.
func (d *Doc) SentenceAt(offset int) int {
	for i, s := range d.Sentences {
		if offset >= s.Start && offset < s.End {
			return i
		}
	}
	return -1
}

// Parser parses text into a Doc.
type Parser interface {
	Parse(ctx context.Context, text string) (*Doc, error)
}

// ProseParser segments, tokenizes and tags text with prose.
type ProseParser struct{}

func NewProseParser() *ProseParser {
	return &ProseParser{}
}

var negationParticles = map[string]bool{
	"not":   true,
	"n't":   true,
	"never": true,
	"no":    true,
}

var beForms = map[string]bool{
	"is":    true,
	"are":   true,
	"was":   true,
	"were":  true,
	"be":    true,
	"been":  true,
	"being": true,
}

// irregularParticiples are past participles that do not end in -ed.
var irregularParticiples = map[string]bool{
	"led":    true,
	"bound":  true,
	"shown":  true,
	"known":  true,
	"found":  true,
	"made":   true,
	"driven": true,
	"given":  true,
	"seen":   true,
}

var subordinators = map[string]bool{
	"while":    true,
	"whereas":  true,
	"although": true,
	"though":   true,
	"because":  true,
	"however":  true,
}

func (p *ProseParser) Parse(ctx context.Context, text string) (*Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := &Doc{Text: text}
	if strings.TrimSpace(text) == "" {
		return doc, nil
	}

	pdoc, err := prose.NewDocument(text, prose.WithExtraction(false))
	if err != nil {
		return nil, fmt.Errorf("failed to parse text: %w", err)
	}

	doc.Sentences = locateSentences(text, pdoc.Sentences())

	cursor := 0
	sent := 0
	for _, pt := range pdoc.Tokens() {
		start := strings.Index(text[cursor:], pt.Text)
		if start < 0 {
			continue
		}
		start += cursor
		end := start + len(pt.Text)
		cursor = end

		for sent < len(doc.Sentences)-1 && start >= doc.Sentences[sent].End {
			sent++
		}

		lower := strings.ToLower(pt.Text)
		doc.Tokens = append(doc.Tokens, Token{
			Text:     pt.Text,
			Lower:    lower,
			Lemma:    Lemma(lower),
			Tag:      pt.Tag,
			Head:     -1,
			Start:    start,
			End:      end,
			Sentence: sent,
		})
	}

	assignTokenRanges(doc)
	attachArcs(doc)
	return doc, nil
}

// locateSentences maps segmenter output back to offsets in text. If any
// sentence cannot be found, the text is split on terminal punctuation
// instead.
func locateSentences(text string, sents []prose.Sentence) []Sentence {
	out := make([]Sentence, 0, len(sents))
	cursor := 0
	for _, s := range sents {
		st := strings.TrimSpace(s.Text)
		if st == "" {
			continue
		}
		idx := strings.Index(text[cursor:], st)
		if idx < 0 {
			return SplitSentences(text)
		}
		start := cursor + idx
		end := start + len(st)
		out = append(out, Sentence{Text: st, Start: start, End: end})
		cursor = end
	}
	if len(out) == 0 {
		return SplitSentences(text)
	}
	// trailing whitespace belongs to the last sentence so every token maps
	out[len(out)-1].End = len(text)
	return out
}

// SplitSentences splits text after '.', '!' or '?' followed by whitespace.
func SplitSentences(text string) []Sentence {
	var out []Sentence
	start := 0
	flush := func(end int) {
		raw := text[start:end]
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			lead := strings.Index(raw, trimmed)
			out = append(out, Sentence{
				Text:  trimmed,
				Start: start + lead,
				End:   start + lead + len(trimmed),
			})
		}
		start = end
	}
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + 1
		if next >= len(text) || unicode.IsSpace(rune(text[next])) {
			flush(next)
		}
	}
	flush(len(text))
	if len(out) > 0 {
		out[len(out)-1].End = len(text)
	}
	return out
}

func assignTokenRanges(doc *Doc) {
	for i := range doc.Sentences {
		doc.Sentences[i].First = -1
	}
	for i, t := range doc.Tokens {
		s := &doc.Sentences[t.Sentence]
		if s.First < 0 {
			s.First = i
		}
		s.Last = i + 1
	}
	for i := range doc.Sentences {
		if doc.Sentences[i].First < 0 {
			doc.Sentences[i].First = 0
			doc.Sentences[i].Last = 0
		}
	}
}

// attachArcs labels negation particles, punctuation and clause openers.
// A negation particle attaches to the next word in its sentence that is
// neither an adverb nor another particle.
func attachArcs(doc *Doc) {
	for i := range doc.Tokens {
		t := &doc.Tokens[i]
		switch {
		case negationParticles[t.Lower]:
			t.Dep = DepNeg
			for j := i + 1; j < len(doc.Tokens) && doc.Tokens[j].Sentence == t.Sentence; j++ {
				next := doc.Tokens[j]
				if negationParticles[next.Lower] || strings.HasPrefix(next.Tag, "RB") {
					continue
				}
				t.Head = j
				break
			}
		case isPunct(t.Text):
			t.Dep = DepPunct
		case subordinators[t.Lower]:
			t.Dep = DepMark
		case t.Lower == "but":
			t.Dep = DepCC
		}
	}
	attachPassives(doc)
}

// attachPassives marks "be + participle" constructions. Adverbs and
// negation particles may sit between the auxiliary and the participle. The
// first "by" after the participle in the same clause becomes its agent.
func attachPassives(doc *Doc) {
	for i := range doc.Tokens {
		aux := &doc.Tokens[i]
		if !beForms[aux.Lower] {
			continue
		}
		j := i + 1
		for j < len(doc.Tokens) && doc.Tokens[j].Sentence == aux.Sentence &&
			(doc.Tokens[j].Dep == DepNeg || strings.HasPrefix(doc.Tokens[j].Tag, "RB")) {
			j++
		}
		if j >= len(doc.Tokens) || doc.Tokens[j].Sentence != aux.Sentence || !isParticiple(doc.Tokens[j]) {
			continue
		}
		aux.Dep = DepAuxPass
		aux.Head = j

		for k := j + 1; k < len(doc.Tokens) && doc.Tokens[k].Sentence == aux.Sentence; k++ {
			next := &doc.Tokens[k]
			if next.IsClauseBoundary() {
				break
			}
			if next.Lower == "by" {
				next.Dep = DepAgent
				next.Head = j
				break
			}
		}
	}
}

func isParticiple(t Token) bool {
	if t.Tag == "VBN" || t.Tag == "VBD" {
		return true
	}
	if strings.HasPrefix(t.Tag, "NN") || (strings.HasPrefix(t.Tag, "JJ") && !strings.HasSuffix(t.Lower, "ed")) {
		return false
	}
	return strings.HasSuffix(t.Lower, "ed") || irregularParticiples[t.Lower]
}

func isPunct(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) {
			return false
		}
	}
	return s != ""
}

// HasNegDependent reports whether any token is a negation attached to
// token i.
func (d *Doc) HasNegDependent(i int) bool {
	for _, t := range d.Tokens {
		if t.Dep == DepNeg && t.Head == i {
			return true
		}
	}
	return false
}
