package neo4j

import (
	"context"
	"strings"

	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/store"
)

const edgeEvidenceQuery = `
MATCH (source {id: $source_id})-[r]->(target {id: $target_id})
WHERE $rel_type = '' OR type(r) = $rel_type
WITH source, target, r LIMIT 1
OPTIONAL MATCH (p:Paper)-[:MENTIONS|STUDIES|REPORTS]->(source)
WHERE (p)-[:MENTIONS|STUDIES|REPORTS]->(target)
RETURN labels(source) AS source_labels, properties(source) AS source_props,
       labels(target) AS target_labels, properties(target) AS target_props,
       type(r) AS type, properties(r) AS rel_props,
       collect(DISTINCT properties(p)) AS papers`

func (s *GraphStorage) EdgeEvidence(ctx context.Context, sourceID, targetID, relType string) (*store.EdgeRecord, error) {
	records, err := s.read(ctx, "edge evidence", edgeEvidenceQuery, map[string]any{
		"source_id": sourceID,
		"target_id": targetID,
		"rel_type":  relType,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	rec := records[0]
	props := mapValue(value(rec, "rel_props"))
	if props == nil {
		props = map[string]any{}
	}
	return &store.EdgeRecord{
		Source:     nodeFromRecord(rec, "source_labels", "source_props"),
		Target:     nodeFromRecord(rec, "target_labels", "target_props"),
		Type:       stringValue(rec, "type"),
		Properties: props,
		Papers:     papersFrom(value(rec, "papers")),
	}, nil
}

const edgesByPaperCountQuery = `
MATCH (source:Entity)-[r]->(target:Entity)
OPTIONAL MATCH (p:Paper)-[:MENTIONS|STUDIES|REPORTS]->(source)
WHERE (p)-[:MENTIONS|STUDIES|REPORTS]->(target)
WITH source, target, r, count(DISTINCT p) AS paper_count
RETURN source.id AS source_id, source.name AS source_name,
       target.id AS target_id, target.name AS target_name,
       type(r) AS relationship_type, paper_count
ORDER BY paper_count DESC, source_name, target_name
LIMIT $limit`

func (s *GraphStorage) EdgesByPaperCount(ctx context.Context, limit int) ([]common.EdgeEvidence, error) {
	records, err := s.read(ctx, "edges by paper count", edgesByPaperCountQuery, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]common.EdgeEvidence, 0, len(records))
	for _, rec := range records {
		out = append(out, common.EdgeEvidence{
			SourceID:         stringValue(rec, "source_id"),
			SourceName:       stringValue(rec, "source_name"),
			TargetID:         stringValue(rec, "target_id"),
			TargetName:       stringValue(rec, "target_name"),
			RelationshipType: stringValue(rec, "relationship_type"),
			PaperCount:       int(intValue(rec, "paper_count")),
		})
	}
	return out, nil
}

const papersByEntitiesQuery = `
MATCH (e:Entity)
WHERE toLower(e.name) IN $names
MATCH (p:Paper)-[:MENTIONS|STUDIES|REPORTS]->(e)
WITH p, count(DISTINCT e) AS entity_count
WHERE entity_count >= $min_matches
RETURN properties(p) AS props, entity_count
ORDER BY entity_count DESC, p.publication_year DESC
LIMIT $limit`

func (s *GraphStorage) PapersByEntities(ctx context.Context, names []string, minMatches, limit int) ([]store.PaperMatch, error) {
	lowered := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			lowered = append(lowered, n)
		}
	}
	if len(lowered) == 0 {
		return []store.PaperMatch{}, nil
	}

	records, err := s.read(ctx, "papers by entities", papersByEntitiesQuery, map[string]any{
		"names":       lowered,
		"min_matches": int64(minMatches),
		"limit":       int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]store.PaperMatch, 0, len(records))
	for _, rec := range records {
		out = append(out, store.PaperMatch{
			Paper:            store.NewGraphNode([]string{string(store.NodePaper)}, mapValue(value(rec, "props"))).Paper(),
			MatchingEntities: int(intValue(rec, "entity_count")),
		})
	}
	return out, nil
}
