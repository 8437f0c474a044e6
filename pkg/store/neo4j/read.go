package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/store"
)

const findEntitiesQuery = `
MATCH (e:Entity)
WHERE any(term IN $terms WHERE toLower(e.name) CONTAINS term)
RETURN labels(e) AS labels, properties(e) AS props
ORDER BY coalesce(e.mention_count, 0) DESC, e.name
LIMIT $limit`

func (s *GraphStorage) FindEntities(ctx context.Context, terms []string, limit int) ([]store.GraphNode, error) {
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}
	lowered = store.DedupeStrings(lowered)
	if len(lowered) == 0 {
		return []store.GraphNode{}, nil
	}

	records, err := s.read(ctx, "find entities", findEntitiesQuery, map[string]any{
		"terms": lowered,
		"limit": int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]store.GraphNode, 0, len(records))
	for _, rec := range records {
		out = append(out, nodeFromRecord(rec, "labels", "props"))
	}
	return out, nil
}

const getNodeQuery = `
MATCH (n {id: $id})
RETURN labels(n) AS labels, properties(n) AS props
LIMIT 1`

func (s *GraphStorage) GetNode(ctx context.Context, id string) (store.GraphNode, error) {
	records, err := s.read(ctx, "get node", getNodeQuery, map[string]any{"id": id})
	if err != nil {
		return store.GraphNode{}, err
	}
	if len(records) == 0 {
		return store.GraphNode{}, fmt.Errorf("node %q: %w", id, store.ErrNotFound)
	}
	return nodeFromRecord(records[0], "labels", "props"), nil
}

// neighborsQuery takes the maximum hop count as its format argument;
// variable length bounds cannot be parameters.
const neighborsQuery = `
MATCH (c {id: $id})
OPTIONAL MATCH p = (c)-[*1..%d]-(n)
WITH c, p LIMIT $limit
UNWIND CASE WHEN p IS NULL THEN [null] ELSE relationships(p) END AS r
RETURN labels(c) AS labels, properties(c) AS props,
       collect(DISTINCT CASE WHEN r IS NULL THEN null ELSE {
           type: type(r),
           source_labels: labels(startNode(r)), source_props: properties(startNode(r)),
           target_labels: labels(endNode(r)), target_props: properties(endNode(r))
       } END) AS rels`

// Neighbors returns the neighbourhood of id within depth hops. Depth is
// clamped to [1, 3].
func (s *GraphStorage) Neighbors(ctx context.Context, id string, depth, limit int) (store.Neighborhood, error) {
	depth = max(1, min(3, depth))
	if limit <= 0 {
		limit = 100
	}

	records, err := s.read(ctx, "neighbors", fmt.Sprintf(neighborsQuery, depth), map[string]any{
		"id":    id,
		"limit": int64(limit),
	})
	if err != nil {
		return store.Neighborhood{}, err
	}
	if len(records) == 0 {
		return store.Neighborhood{}, fmt.Errorf("node %q: %w", id, store.ErrNotFound)
	}

	rec := records[0]
	hood := store.Neighborhood{
		Center: nodeFromRecord(rec, "labels", "props"),
		Nodes:  []store.GraphNode{},
		Edges:  []store.Edge{},
	}
	seen := map[string]bool{hood.Center.ID: true}
	addNode := func(n store.GraphNode) {
		if n.ID == "" || seen[n.ID] {
			return
		}
		seen[n.ID] = true
		hood.Nodes = append(hood.Nodes, n)
	}

	for _, raw := range listValue(value(rec, "rels")) {
		m := mapValue(raw)
		if m == nil {
			continue
		}
		src := node(m["source_labels"], m["source_props"])
		tgt := node(m["target_labels"], m["target_props"])
		addNode(src)
		addNode(tgt)
		relType, _ := m["type"].(string)
		hood.Edges = append(hood.Edges, store.Edge{Source: src.ID, Target: tgt.ID, Type: relType})
	}
	return hood, nil
}

const entityContextQuery = `
MATCH (e:Entity {id: $id})
OPTIONAL MATCH (p:Paper)-[:MENTIONS]->(e)
WITH e, collect(DISTINCT properties(p))[0..$max_papers] AS papers
OPTIONAL MATCH (e)-[r]-(related:Entity)
WHERE size($types) = 0 OR any(l IN labels(related) WHERE l IN $types)
WITH e, papers, collect(DISTINCT CASE WHEN related IS NULL THEN null ELSE {
    type: type(r), labels: labels(related), props: properties(related)
} END)[0..$max_related] AS rels
RETURN labels(e) AS labels, properties(e) AS props, papers, rels`

func (s *GraphStorage) EntityContext(
	ctx context.Context,
	id string,
	types []store.NodeType,
	maxPapers, maxRelated int,
) (store.EntityContext, error) {
	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}

	records, err := s.read(ctx, "entity context", entityContextQuery, map[string]any{
		"id":          id,
		"types":       typeNames,
		"max_papers":  int64(maxPapers),
		"max_related": int64(maxRelated),
	})
	if err != nil {
		return store.EntityContext{}, err
	}
	if len(records) == 0 {
		return store.EntityContext{}, fmt.Errorf("entity %q: %w", id, store.ErrNotFound)
	}

	rec := records[0]
	out := store.EntityContext{
		Entity:  nodeFromRecord(rec, "labels", "props"),
		Papers:  papersFrom(value(rec, "papers")),
		Related: []store.RelatedNode{},
	}
	for _, raw := range listValue(value(rec, "rels")) {
		m := mapValue(raw)
		if m == nil {
			continue
		}
		relType, _ := m["type"].(string)
		out.Related = append(out.Related, store.RelatedNode{
			Node:    node(m["labels"], m["props"]),
			RelType: relType,
		})
	}
	return out, nil
}

func papersFrom(v any) []common.Paper {
	list := listValue(v)
	out := make([]common.Paper, 0, len(list))
	for _, raw := range list {
		props := mapValue(raw)
		if props == nil {
			continue
		}
		out = append(out, store.NewGraphNode([]string{string(store.NodePaper)}, props).Paper())
	}
	return out
}

const randomPapersQuery = `
MATCH (p:Paper)
RETURN properties(p) AS props
ORDER BY rand()
LIMIT $n`

func (s *GraphStorage) RandomPapers(ctx context.Context, n int) ([]common.Paper, error) {
	records, err := s.read(ctx, "random papers", randomPapersQuery, map[string]any{"n": int64(n)})
	if err != nil {
		return nil, err
	}
	out := make([]common.Paper, 0, len(records))
	for _, rec := range records {
		out = append(out, store.NewGraphNode([]string{string(store.NodePaper)}, mapValue(value(rec, "props"))).Paper())
	}
	return out, nil
}

const (
	nodeCountsQuery = `
MATCH (n)
RETURN labels(n) AS labels, count(*) AS count`

	edgeCountsQuery = `
MATCH ()-[r]->()
RETURN type(r) AS type, count(r) AS count`
)

// Statistics counts nodes by resolved type and edges by relationship type.
func (s *GraphStorage) Statistics(ctx context.Context) (store.Statistics, error) {
	stats := store.Statistics{
		Nodes:         map[string]int64{},
		Relationships: map[string]int64{},
	}

	records, err := s.read(ctx, "count nodes", nodeCountsQuery, nil)
	if err != nil {
		return stats, err
	}
	for _, rec := range records {
		t := store.ResolveNodeType(stringList(value(rec, "labels")))
		n := intValue(rec, "count")
		stats.Nodes[string(t)] += n
		stats.TotalNodes += n
	}

	records, err = s.read(ctx, "count edges", edgeCountsQuery, nil)
	if err != nil {
		return stats, err
	}
	for _, rec := range records {
		n := intValue(rec, "count")
		stats.Relationships[stringValue(rec, "type")] += n
		stats.TotalRelationships += n
	}
	return stats, nil
}

const searchEntitiesQuery = `
MATCH (e:Entity)
WHERE ($type = '' OR $type IN labels(e))
  AND ($text = ''
       OR ($prefix AND toLower(e.name) STARTS WITH $text)
       OR (NOT $prefix AND toLower(e.name) CONTAINS $text))
RETURN labels(e) AS labels, properties(e) AS props
ORDER BY CASE
           WHEN toLower(e.name) = $text THEN 0
           WHEN toLower(e.name) STARTS WITH $text THEN 1
           ELSE 2
         END,
         coalesce(e.mention_count, 0) DESC, e.name
SKIP $offset LIMIT $limit`

// SearchEntities ranks exact name matches first, then prefix matches, then
// by mention count.
func (s *GraphStorage) SearchEntities(ctx context.Context, q store.EntityQuery) ([]store.GraphNode, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	records, err := s.read(ctx, "search entities", searchEntitiesQuery, map[string]any{
		"text":   strings.ToLower(strings.TrimSpace(q.Text)),
		"prefix": q.Prefix,
		"type":   string(q.Type),
		"offset": int64(max(0, q.Offset)),
		"limit":  int64(q.Limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]store.GraphNode, 0, len(records))
	for _, rec := range records {
		out = append(out, nodeFromRecord(rec, "labels", "props"))
	}
	return out, nil
}

const searchPapersQuery = `
MATCH (p:Paper)
WHERE toLower(coalesce(p.title, '')) CONTAINS $text
   OR toLower(coalesce(p.abstract, '')) CONTAINS $text
   OR any(term IN coalesce(p.mesh_terms, []) WHERE toLower(term) CONTAINS $text)
RETURN properties(p) AS props
ORDER BY CASE WHEN toLower(coalesce(p.title, '')) CONTAINS $text THEN 0 ELSE 1 END,
         p.publication_year DESC, p.title
SKIP $offset LIMIT $limit`

func (s *GraphStorage) SearchPapers(ctx context.Context, text string, limit, offset int) ([]common.Paper, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return []common.Paper{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	records, err := s.read(ctx, "search papers", searchPapersQuery, map[string]any{
		"text":   text,
		"offset": int64(max(0, offset)),
		"limit":  int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]common.Paper, 0, len(records))
	for _, rec := range records {
		out = append(out, store.NewGraphNode([]string{string(store.NodePaper)}, mapValue(value(rec, "props"))).Paper())
	}
	return out, nil
}

const entityPapersQuery = `
MATCH (e:Entity {id: $id})
OPTIONAL MATCH (p:Paper)-[:MENTIONS]->(e)
WITH e, p ORDER BY p.publication_year DESC, p.title
WITH e, collect(properties(p)) AS papers
RETURN papers[$offset..($offset + $limit)] AS papers`

func (s *GraphStorage) EntityPapers(ctx context.Context, id string, limit, offset int) ([]common.Paper, error) {
	if limit <= 0 {
		limit = 20
	}
	records, err := s.read(ctx, "entity papers", entityPapersQuery, map[string]any{
		"id":     id,
		"offset": int64(max(0, offset)),
		"limit":  int64(limit),
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("entity %q: %w", id, store.ErrNotFound)
	}
	return papersFrom(value(records[0], "papers")), nil
}

// shortestPathQuery takes the maximum path length as its format argument.
const shortestPathQuery = `
MATCH (s {id: $source})
MATCH (t {id: $target})
OPTIONAL MATCH p = shortestPath((s)-[*..%d]-(t))
RETURN [n IN nodes(p) | {labels: labels(n), props: properties(n)}] AS nodes,
       [r IN relationships(p) | {type: type(r), source: startNode(r).id, target: endNode(r).id}] AS rels`

// ShortestPath finds an undirected shortest path of at most maxLength
// edges, clamped to [1, 10]. Either endpoint missing is ErrNotFound; the
// endpoints must differ.
func (s *GraphStorage) ShortestPath(ctx context.Context, sourceID, targetID string, maxLength int) (store.Path, error) {
	if sourceID == targetID {
		return store.Path{}, fmt.Errorf("path from %q to itself", sourceID)
	}
	maxLength = max(1, min(10, maxLength))

	records, err := s.read(ctx, "shortest path", fmt.Sprintf(shortestPathQuery, maxLength), map[string]any{
		"source": sourceID,
		"target": targetID,
	})
	if err != nil {
		return store.Path{}, err
	}
	if len(records) == 0 {
		return store.Path{}, fmt.Errorf("path %q to %q: %w", sourceID, targetID, store.ErrNotFound)
	}

	rec := records[0]
	path := store.Path{Nodes: []store.GraphNode{}, Edges: []store.Edge{}}
	for _, raw := range listValue(value(rec, "nodes")) {
		if m := mapValue(raw); m != nil {
			path.Nodes = append(path.Nodes, node(m["labels"], m["props"]))
		}
	}
	for _, raw := range listValue(value(rec, "rels")) {
		m := mapValue(raw)
		if m == nil {
			continue
		}
		relType, _ := m["type"].(string)
		src, _ := m["source"].(string)
		tgt, _ := m["target"].(string)
		path.Edges = append(path.Edges, store.Edge{Source: src, Target: tgt, Type: relType})
	}
	path.Found = len(path.Nodes) > 0
	return path, nil
}
