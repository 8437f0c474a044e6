package neo4j

import (
	"context"
	"fmt"

	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/store"
)

var schemaStatements = []string{
	"CREATE CONSTRAINT paper_id IF NOT EXISTS FOR (p:Paper) REQUIRE p.id IS UNIQUE",
	"CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE",
	"CREATE INDEX paper_pmid IF NOT EXISTS FOR (p:Paper) ON (p.pmid)",
	"CREATE INDEX paper_doi IF NOT EXISTS FOR (p:Paper) ON (p.doi)",
	"CREATE INDEX paper_year IF NOT EXISTS FOR (p:Paper) ON (p.publication_year)",
	"CREATE INDEX entity_name IF NOT EXISTS FOR (e:Entity) ON (e.name)",
}

// EnsureSchema creates the uniqueness constraints and lookup indexes.
func (s *GraphStorage) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := s.write(ctx, "ensure schema", stmt, nil); err != nil {
			return err
		}
	}
	logger.Debug("[Graph] Schema ready", "statements", len(schemaStatements))
	return nil
}

const upsertPapersQuery = `
UNWIND $batch AS paper
MERGE (p:Paper {id: paper.id})
SET p.pmid = paper.pmid,
    p.title = paper.title,
    p.abstract = paper.abstract,
    p.doi = paper.doi,
    p.publication_year = paper.publication_year,
    p.journal = paper.journal,
    p.authors = paper.authors,
    p.mesh_terms = paper.mesh_terms,
    p.source = paper.source`

func (s *GraphStorage) UpsertPapers(ctx context.Context, papers []common.Paper) error {
	return store.ChunkRange(len(papers), s.batchSize, func(start, end int) error {
		batch := make([]any, 0, end-start)
		for _, p := range papers[start:end] {
			batch = append(batch, map[string]any{
				"id":               store.PaperID(p),
				"pmid":             p.PMID,
				"title":            p.Title,
				"abstract":         p.Abstract,
				"doi":              p.DOI,
				"publication_year": int64(p.PublicationYear),
				"journal":          p.Journal,
				"authors":          nonNil(p.Authors),
				"mesh_terms":       nonNil(p.MeshTerms),
				"source":           p.Source,
			})
		}
		return s.write(ctx, "upsert papers", upsertPapersQuery, map[string]any{"batch": batch})
	})
}

// upsertEntitiesQuery takes the type label as its format argument; labels
// cannot be query parameters.
const upsertEntitiesQuery = `
UNWIND $batch AS ent
MERGE (e:Entity {id: ent.id})
SET e:%s,
    e.name = ent.name,
    e.entity_type = ent.type,
    e.mention_count = ent.mentions,
    e.confidence = ent.confidence`

func (s *GraphStorage) UpsertEntities(ctx context.Context, entities []store.EntityRecord) error {
	byLabel := make(map[store.NodeType][]any)
	var order []store.NodeType
	for _, e := range entities {
		label := store.NodeTypeOf(e.Type)
		if _, ok := byLabel[label]; !ok {
			order = append(order, label)
		}
		byLabel[label] = append(byLabel[label], map[string]any{
			"id":         e.ID,
			"name":       e.Name,
			"type":       string(e.Type),
			"mentions":   int64(e.Mentions),
			"confidence": e.Confidence,
		})
	}

	for _, label := range order {
		rows := byLabel[label]
		query := fmt.Sprintf(upsertEntitiesQuery, label)
		err := store.ChunkRange(len(rows), s.batchSize, func(start, end int) error {
			return s.write(ctx, "upsert entities", query, map[string]any{"batch": rows[start:end]})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

const linkMentionsQuery = `
UNWIND $batch AS m
MATCH (p:Paper {id: m.paper_id})
MATCH (e:Entity {id: m.entity_id})
MERGE (p)-[r:MENTIONS]->(e)
SET r.count = m.count,
    r.confidence = m.confidence`

func (s *GraphStorage) LinkMentions(ctx context.Context, mentions []store.Mention) error {
	return store.ChunkRange(len(mentions), s.batchSize, func(start, end int) error {
		batch := make([]any, 0, end-start)
		for _, m := range mentions[start:end] {
			batch = append(batch, map[string]any{
				"paper_id":   m.PaperID,
				"entity_id":  m.EntityID,
				"count":      int64(m.Count),
				"confidence": m.Confidence,
			})
		}
		return s.write(ctx, "link mentions", linkMentionsQuery, map[string]any{"batch": batch})
	})
}

// upsertRelationshipsQuery takes the relationship type as its format
// argument.
const upsertRelationshipsQuery = `
UNWIND $batch AS rel
MATCH (s:Entity {id: rel.source})
MATCH (t:Entity {id: rel.target})
MERGE (s)-[r:%s]->(t)
SET r.confidence = rel.confidence,
    r.count = rel.count,
    r.pmids = rel.pmids,
    r.evidence = rel.evidence,
    r.extraction_methods = rel.methods`

// UpsertRelationships merges typed edges. Records with an unknown type are
// skipped.
func (s *GraphStorage) UpsertRelationships(ctx context.Context, relations []store.RelationshipRecord) error {
	byType := make(map[common.RelationType][]any)
	for _, r := range relations {
		if !r.Type.IsValid() {
			logger.Warn("[Graph] Skipping relationship with unknown type", "type", r.Type)
			continue
		}
		byType[r.Type] = append(byType[r.Type], map[string]any{
			"source":     r.SourceID,
			"target":     r.TargetID,
			"confidence": r.Confidence,
			"count":      int64(r.Count),
			"pmids":      nonNil(r.PMIDs),
			"evidence":   nonNil(r.Evidence),
			"methods":    nonNil(r.Methods),
		})
	}

	for _, relType := range common.RelationTypes {
		rows := byType[relType]
		if len(rows) == 0 {
			continue
		}
		query := fmt.Sprintf(upsertRelationshipsQuery, relType)
		err := store.ChunkRange(len(rows), s.batchSize, func(start, end int) error {
			return s.write(ctx, "upsert relationships", query, map[string]any{"batch": rows[start:end]})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
