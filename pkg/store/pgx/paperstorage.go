// Package pgx implements the document corpus on PostgreSQL with pgvector.
package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/NimaFathima/astrobiomers/internal/util"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/leaselock"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	SendBatch(ctx context.Context, b *pgxv5.Batch) pgxv5.BatchResults
}

// PaperDBStorage stores papers, their abstract embeddings and ingest job
// records.
type PaperDBStorage struct {
	conn pgxIConn
	pool *pgxpool.Pool
}

// NewPaperDBStorage opens a connection pool with the pgvector types
// registered on every connection.
func NewPaperDBStorage(ctx context.Context, databaseURL string) (*PaperDBStorage, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgxv5.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to database: %w", store.ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", store.ErrUnavailable, err)
	}

	return &PaperDBStorage{conn: pool, pool: pool}, nil
}

// NewPaperDBStorageWithConnection wraps an existing connection or
// transaction.
func NewPaperDBStorageWithConnection(conn pgxIConn) *PaperDBStorage {
	return &PaperDBStorage{conn: conn}
}

// Leases returns a lease client on the job_leases table.
func (s *PaperDBStorage) Leases() *leaselock.Client {
	return leaselock.New(s.conn)
}

func (s *PaperDBStorage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const upsertPaperSQL = `
INSERT INTO papers (
    id, pmid, title, abstract, publication_year, authors, doi, journal,
    mesh_terms, source, content_hash, embedding
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
    pmid = EXCLUDED.pmid,
    title = EXCLUDED.title,
    abstract = EXCLUDED.abstract,
    publication_year = EXCLUDED.publication_year,
    authors = EXCLUDED.authors,
    doi = EXCLUDED.doi,
    journal = EXCLUDED.journal,
    mesh_terms = EXCLUDED.mesh_terms,
    source = EXCLUDED.source,
    embedding = CASE
        WHEN papers.content_hash = EXCLUDED.content_hash
        THEN COALESCE(EXCLUDED.embedding, papers.embedding)
        ELSE EXCLUDED.embedding
    END,
    content_hash = EXCLUDED.content_hash,
    updated_at = now()`

// paperArgs returns the insert arguments of p in upsertPaperSQL order.
// Text is stripped of bytes PostgreSQL rejects and empty optional fields
// become NULL.
func paperArgs(p common.Paper) []any {
	title := util.SanitizePostgresText(p.Title)
	abstract := util.SanitizePostgresText(p.Abstract)

	var embedding any
	if len(p.Embedding) > 0 {
		embedding = pgvector.NewVector(p.Embedding)
	}

	return []any{
		store.PaperID(p),
		nullable(p.PMID),
		title,
		abstract,
		nullableInt(p.PublicationYear),
		sanitizeAll(p.Authors),
		nullable(p.DOI),
		nullable(util.SanitizePostgresText(p.Journal)),
		sanitizeAll(p.MeshTerms),
		nullable(p.Source),
		util.ContentHash(title + "\n" + abstract),
		embedding,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt(i int) *int32 {
	if i == 0 {
		return nil
	}
	v := int32(i)
	return &v
}

func sanitizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = util.SanitizePostgresText(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// UpsertPapers writes papers in one batch round trip.
func (s *PaperDBStorage) UpsertPapers(ctx context.Context, papers []common.Paper) error {
	if len(papers) == 0 {
		return nil
	}

	batch := &pgxv5.Batch{}
	for _, p := range papers {
		batch.Queue(upsertPaperSQL, paperArgs(p)...)
	}
	br := s.conn.SendBatch(ctx, batch)
	for range papers {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("%w: failed to upsert papers: %w", store.ErrUnavailable, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("%w: failed to upsert papers: %w", store.ErrUnavailable, err)
	}
	return nil
}

const paperColumns = `id, pmid, title, abstract, publication_year, authors, doi, journal, mesh_terms, source`

func scanPaper(row pgxv5.Row, extra ...any) (common.Paper, error) {
	var (
		id, title, abstract string
		pmid, doi           *string
		journal, source     *string
		year                *int32
		authors, meshTerms  []string
	)
	dest := append([]any{&id, &pmid, &title, &abstract, &year, &authors, &doi, &journal, &meshTerms, &source}, extra...)
	if err := row.Scan(dest...); err != nil {
		return common.Paper{}, err
	}

	p := common.Paper{
		Title:     title,
		Abstract:  abstract,
		Authors:   authors,
		MeshTerms: meshTerms,
	}
	p.PMID = deref(pmid)
	p.DOI = deref(doi)
	p.Journal = deref(journal)
	p.Source = deref(source)
	if year != nil {
		p.PublicationYear = int(*year)
	}
	return p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *PaperDBStorage) GetPaper(ctx context.Context, pmid string) (common.Paper, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+paperColumns+` FROM papers WHERE pmid = $1`, pmid)
	p, err := scanPaper(row)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.Paper{}, fmt.Errorf("paper %s: %w", pmid, store.ErrNotFound)
	}
	if err != nil {
		return common.Paper{}, fmt.Errorf("%w: failed to get paper: %w", store.ErrUnavailable, err)
	}
	return p, nil
}

func (s *PaperDBStorage) ListPapers(ctx context.Context, limit, offset int) ([]common.Paper, error) {
	rows, err := s.conn.Query(ctx, `
SELECT `+paperColumns+`
FROM papers
ORDER BY publication_year DESC NULLS LAST, id
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list papers: %w", store.ErrUnavailable, err)
	}
	defer rows.Close()

	out := []common.Paper{}
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to list papers: %w", store.ErrUnavailable, err)
	}
	return out, nil
}

// SimilarPapers ranks embedded papers by cosine similarity to embedding.
func (s *PaperDBStorage) SimilarPapers(ctx context.Context, embedding []float32, limit int) ([]store.ScoredPaper, error) {
	if len(embedding) == 0 {
		return []store.ScoredPaper{}, nil
	}

	rows, err := s.conn.Query(ctx, `
SELECT `+paperColumns+`, 1 - (embedding <=> $1) AS similarity
FROM papers
WHERE embedding IS NOT NULL AND vector_dims(embedding) = $3
ORDER BY embedding <=> $1
LIMIT $2`, pgvector.NewVector(embedding), limit, len(embedding))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to search papers: %w", store.ErrUnavailable, err)
	}
	defer rows.Close()

	out := []store.ScoredPaper{}
	for rows.Next() {
		var similarity float64
		p, err := scanPaper(rows, &similarity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		out = append(out, store.ScoredPaper{Paper: p, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to search papers: %w", store.ErrUnavailable, err)
	}
	return out, nil
}

var _ store.PaperStorage = (*PaperDBStorage)(nil)
