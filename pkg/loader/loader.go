// Package loader reads paper corpora from JSON or JSONL files.
package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
)

type CorpusFormat string

const (
	CorpusFormatJSON  CorpusFormat = "json"
	CorpusFormatJSONL CorpusFormat = "jsonl"
)

// CorpusFile is a corpus file together with the loader that can fetch it.
//
// The actual file content is retrieved via the associated CorpusLoader.
type CorpusFile struct {
	Path   string
	Format CorpusFormat
	Loader CorpusLoader
}

// NewCorpusFile creates a CorpusFile whose format follows the file
// extension: ".jsonl" and ".ndjson" are JSONL, everything else is JSON.
func NewCorpusFile(filePath string, l CorpusLoader) CorpusFile {
	return CorpusFile{
		Path:   filePath,
		Format: FormatOf(filePath),
		Loader: l,
	}
}

func FormatOf(filePath string) CorpusFormat {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".jsonl", ".ndjson":
		return CorpusFormatJSONL
	default:
		return CorpusFormatJSON
	}
}

// GetPapers fetches the file and decodes its papers.
//
// Example:
//
//	file := loader.NewCorpusFile("data/papers.jsonl", io.NewIOCorpusLoader())
//	papers, err := file.GetPapers(ctx)
func (f *CorpusFile) GetPapers(ctx context.Context) ([]common.Paper, error) {
	data, err := f.Loader.GetFile(ctx, f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", f.Path, err)
	}
	return ParsePapers(data, f.Format)
}

// CorpusLoader defines the interface for fetching the raw bytes of a corpus
// file. Implementations may load files from disk, object storage or other
// sources.
type CorpusLoader interface {
	GetFile(ctx context.Context, path string) ([]byte, error)
}

// ParsePapers decodes a corpus. JSON input is an array of papers or an
// object with a "papers" array. JSONL input has one paper per line; blank
// lines are ignored and malformed lines are logged and skipped.
func ParsePapers(data []byte, format CorpusFormat) ([]common.Paper, error) {
	if format == CorpusFormatJSONL {
		return parseJSONL(data)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []common.Paper{}, nil
	}

	var records []paperRecord
	if trimmed[0] == '{' {
		var wrapper struct {
			Papers []paperRecord `json:"papers"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to decode corpus: %w", err)
		}
		records = wrapper.Papers
	} else if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("failed to decode corpus: %w", err)
	}

	papers := make([]common.Paper, 0, len(records))
	for _, r := range records {
		papers = append(papers, r.paper())
	}
	return papers, nil
}

func parseJSONL(data []byte) ([]common.Paper, error) {
	papers := make([]common.Paper, 0)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var r paperRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			logger.Warn("[Corpus] Skipping malformed line", "line", line, "err", err)
			continue
		}
		papers = append(papers, r.paper())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan corpus: %w", err)
	}
	return papers, nil
}

// paperRecord is the on-disk shape of a paper. PubMed exports are not
// consistent about types, so ids may be numbers and authors a single
// comma-separated string.
type paperRecord struct {
	PMID            flexString  `json:"pmid"`
	Title           string      `json:"title"`
	Abstract        string      `json:"abstract"`
	PublicationYear flexInt     `json:"publication_year"`
	PublicationDate string      `json:"publication_date"`
	Authors         flexStrings `json:"authors"`
	DOI             string      `json:"doi"`
	Journal         string      `json:"journal"`
	MeshTerms       flexStrings `json:"mesh_terms"`
	Source          string      `json:"source"`
}

func (r paperRecord) paper() common.Paper {
	year := int(r.PublicationYear)
	if year == 0 && len(r.PublicationDate) >= 4 {
		year, _ = strconv.Atoi(r.PublicationDate[:4])
	}
	return common.Paper{
		PMID:            strings.TrimSpace(string(r.PMID)),
		Title:           strings.TrimSpace(r.Title),
		Abstract:        strings.TrimSpace(r.Abstract),
		PublicationYear: year,
		Authors:         []string(r.Authors),
		DOI:             r.DOI,
		Journal:         r.Journal,
		MeshTerms:       []string(r.MeshTerms),
		Source:          r.Source,
	}
}

type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

type flexInt int

func (i *flexInt) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*i = flexInt(x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil
		}
		*i = flexInt(n)
	}
	return nil
}

type flexStrings []string

func (s *flexStrings) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*s = out
		return nil
	}
	var v []string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = v
	return nil
}
