package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/NimaFathima/astrobiomers/pkg/ai"

	"golang.org/x/sync/errgroup"
)

// ChunkRange calls fn for consecutive [start, end) windows of at most
// chunkSize items.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// DedupeStrings drops empty and repeated values, keeping the first order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// TypeShare is one type's slice of a count distribution.
type TypeShare struct {
	Type       string  `json:"type"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Distribution turns per-type counts into shares of their sum, largest
// first. Types in skip and zero counts are left out.
func Distribution(counts map[string]int64, skip ...string) ([]TypeShare, int64) {
	out := []TypeShare{}
	var total int64
	for t, n := range counts {
		if n <= 0 || slices.Contains(skip, t) {
			continue
		}
		out = append(out, TypeShare{Type: t, Count: n})
		total += n
	}
	for i := range out {
		out[i].Percentage = float64(out[i].Count) * 100 / float64(total)
	}
	slices.SortFunc(out, func(a, b TypeShare) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Type, b.Type)
	})
	return out, total
}

type embeddingBatcher interface {
	GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// GenerateEmbeddings embeds inputs with one batched request when the client
// supports it and with concurrent single requests otherwise.
func GenerateEmbeddings(
	ctx context.Context,
	client ai.GraphAIClient,
	inputs []string,
	maxParallel int,
) ([][]float32, error) {
	if client == nil {
		return nil, fmt.Errorf("ai client is nil")
	}
	if len(inputs) == 0 {
		return nil, nil
	}
	if b, ok := client.(embeddingBatcher); ok {
		return b.GenerateEmbeddings(ctx, inputs)
	}

	out := make([][]float32, len(inputs))

	eg, ectx := errgroup.WithContext(ctx)
	if maxParallel > 0 {
		eg.SetLimit(maxParallel)
	}
	for i := range inputs {
		eg.Go(func() error {
			emb, err := client.GenerateEmbedding(ectx, []byte(inputs[i]))
			if err != nil {
				return err
			}
			out[i] = emb
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}
