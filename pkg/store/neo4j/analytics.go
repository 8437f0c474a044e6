package neo4j

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/NimaFathima/astrobiomers/pkg/store"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var topEntitiesQueries = map[store.RankMetric]string{
	store.RankByPapers: `
MATCH (e:Entity)
WHERE $type = '' OR $type IN labels(e)
OPTIONAL MATCH (p:Paper)-[:MENTIONS]->(e)
WITH e, count(DISTINCT p) AS score
RETURN labels(e) AS labels, properties(e) AS props, score
ORDER BY score DESC, props.name
LIMIT $limit`,
	store.RankByDegree: `
MATCH (e:Entity)
WHERE $type = '' OR $type IN labels(e)
OPTIONAL MATCH (e)-[r]-(:Entity)
WITH e, count(DISTINCT r) AS score
RETURN labels(e) AS labels, properties(e) AS props, score
ORDER BY score DESC, props.name
LIMIT $limit`,
}

// TopEntities ranks entities by mentioning papers or by their number of
// entity relationships. An empty type ranks all entities.
func (s *GraphStorage) TopEntities(ctx context.Context, t store.NodeType, metric store.RankMetric, limit int) ([]store.RankedNode, error) {
	query, ok := topEntitiesQueries[metric]
	if !ok {
		return nil, fmt.Errorf("unknown ranking metric %q", metric)
	}
	records, err := s.read(ctx, "top entities", query, map[string]any{
		"type":  string(t),
		"limit": int64(limit),
	})
	if err != nil {
		return nil, err
	}
	return rankedFrom(records), nil
}

const coOccurringQuery = `
MATCH (e:Entity {id: $id})<-[:MENTIONS]-(p:Paper)-[:MENTIONS]->(other:Entity)
WHERE other <> e
WITH other, count(DISTINCT p) AS score
RETURN labels(other) AS labels, properties(other) AS props, score
ORDER BY score DESC, props.name
LIMIT $limit`

func (s *GraphStorage) CoOccurring(ctx context.Context, id string, limit int) ([]store.RankedNode, error) {
	records, err := s.read(ctx, "co-occurring entities", coOccurringQuery, map[string]any{
		"id":    id,
		"limit": int64(limit),
	})
	if err != nil {
		return nil, err
	}
	return rankedFrom(records), nil
}

func rankedFrom(records []*neo4jv5.Record) []store.RankedNode {
	out := make([]store.RankedNode, 0, len(records))
	for _, rec := range records {
		out = append(out, store.RankedNode{
			Node:  nodeFromRecord(rec, "labels", "props"),
			Score: intValue(rec, "score"),
		})
	}
	return out
}

const topicPairsQuery = `
MATCH (e1:Entity)<-[:MENTIONS]-(p:Paper)-[:MENTIONS]->(e2:Entity)
WHERE e1.id < e2.id
WITH e1, e2, count(DISTINCT p) AS papers
WHERE papers >= $min_papers
RETURN labels(e1) AS labels1, properties(e1) AS props1,
       labels(e2) AS labels2, properties(e2) AS props2, papers
ORDER BY papers DESC, props1.name, props2.name
LIMIT $limit`

// TopicPairs returns entity pairs mentioned together by at least minPapers
// papers.
func (s *GraphStorage) TopicPairs(ctx context.Context, minPapers, limit int) ([]store.TopicPair, error) {
	records, err := s.read(ctx, "topic pairs", topicPairsQuery, map[string]any{
		"min_papers": int64(max(1, minPapers)),
		"limit":      int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]store.TopicPair, 0, len(records))
	for _, rec := range records {
		n := intValue(rec, "papers")
		out = append(out, store.TopicPair{
			First:    nodeFromRecord(rec, "labels1", "props1"),
			Second:   nodeFromRecord(rec, "labels2", "props2"),
			Papers:   n,
			Strength: store.PairStrength(n),
		})
	}
	return out, nil
}

// Papers without a publication year are stored with year 0.
const publicationsByYearQuery = `
MATCH (p:Paper)
WHERE p.publication_year > 0
  AND p.publication_year >= $start AND p.publication_year <= $end
  AND ($topic = '' OR EXISTS {
        MATCH (p)-[:MENTIONS]->(e:Entity)
        WHERE toLower(e.name) CONTAINS $topic
      })
RETURN p.publication_year AS year, count(p) AS papers
ORDER BY year`

func (s *GraphStorage) PublicationsByYear(ctx context.Context, topic string, startYear, endYear int) ([]store.YearCount, error) {
	records, err := s.read(ctx, "publications by year", publicationsByYearQuery, map[string]any{
		"topic": strings.ToLower(strings.TrimSpace(topic)),
		"start": int64(startYear),
		"end":   int64(endYear),
	})
	if err != nil {
		return nil, err
	}
	out := make([]store.YearCount, 0, len(records))
	for _, rec := range records {
		out = append(out, store.YearCount{Year: int(intValue(rec, "year")), Papers: intValue(rec, "papers")})
	}
	return out, nil
}

const (
	// minGrowthRate is the recent to historical ratio a topic must exceed.
	minGrowthRate   = 1.5
	rapidGrowthRate = 5.0
)

// Entities absent from the historical window get their recent count as
// growth rate and status "new".
const emergingTopicsQuery = `
MATCH (p:Paper)
WHERE p.publication_year > 0
WITH max(p.publication_year) - $window AS cutoff
MATCH (p:Paper)-[:MENTIONS]->(e:Entity)
WHERE p.publication_year > 0
WITH e,
     count(DISTINCT CASE WHEN p.publication_year > cutoff THEN p END) AS recent,
     count(DISTINCT CASE WHEN p.publication_year <= cutoff THEN p END) AS historical
WHERE recent >= $min_papers
WITH e, recent, historical,
     CASE WHEN historical = 0 THEN toFloat(recent) ELSE toFloat(recent) / historical END AS growth
WHERE historical = 0 OR growth > $min_growth
RETURN labels(e) AS labels, properties(e) AS props, recent, historical, growth
ORDER BY growth DESC, recent DESC
LIMIT $limit`

// EmergingTopics finds entities whose mentions in the latest windowYears
// of publications outgrow their mentions in all earlier years.
func (s *GraphStorage) EmergingTopics(ctx context.Context, windowYears, minPapers, limit int) ([]store.TopicGrowth, error) {
	records, err := s.read(ctx, "emerging topics", emergingTopicsQuery, map[string]any{
		"window":     int64(max(1, windowYears)),
		"min_papers": int64(max(1, minPapers)),
		"min_growth": minGrowthRate,
		"limit":      int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]store.TopicGrowth, 0, len(records))
	for _, rec := range records {
		g := store.TopicGrowth{
			Entity:     nodeFromRecord(rec, "labels", "props"),
			Recent:     intValue(rec, "recent"),
			Historical: intValue(rec, "historical"),
			GrowthRate: floatValue(rec, "growth"),
		}
		switch {
		case g.Historical == 0:
			g.Status = "new"
		case g.GrowthRate > rapidGrowthRate:
			g.Status = "rapid growth"
		default:
			g.Status = "growing"
		}
		out = append(out, g)
	}
	return out, nil
}

// Authors are a list property of the paper node.
const topAuthorsQuery = `
MATCH (p:Paper)
WHERE $topic = '' OR EXISTS {
  MATCH (p)-[:MENTIONS]->(e:Entity)
  WHERE toLower(e.name) CONTAINS $topic
}
UNWIND coalesce(p.authors, []) AS author
WITH author, count(DISTINCT p) AS papers, collect(p.publication_year) AS years
RETURN author AS name, papers, [y IN years WHERE y > 0] AS years
ORDER BY papers DESC, name
LIMIT $limit`

func (s *GraphStorage) TopAuthors(ctx context.Context, topic string, limit int) ([]store.AuthorStats, error) {
	records, err := s.read(ctx, "top authors", topAuthorsQuery, map[string]any{
		"topic": strings.ToLower(strings.TrimSpace(topic)),
		"limit": int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]store.AuthorStats, 0, len(records))
	for _, rec := range records {
		out = append(out, authorStats(stringValue(rec, "name"), intValue(rec, "papers"), intList(value(rec, "years"))))
	}
	return out, nil
}

func authorStats(name string, papers int64, years []int) store.AuthorStats {
	a := store.AuthorStats{Name: name, Papers: papers}
	if len(years) == 0 {
		return a
	}
	a.FirstYear = slices.Min(years)
	a.LastYear = slices.Max(years)
	a.YearsActive = a.LastYear - a.FirstYear + 1
	a.PapersPerYear = float64(papers) / float64(a.YearsActive)
	return a
}

const (
	authorCollaborationsQuery = `
MATCH (p:Paper)
WHERE any(a IN coalesce(p.authors, []) WHERE toLower(a) CONTAINS $author)
UNWIND [a IN p.authors WHERE toLower(a) CONTAINS $author] AS focus
UNWIND p.authors AS other
WITH focus, other, p
WHERE focus <> other
RETURN focus AS source, other AS target, count(DISTINCT p) AS papers
ORDER BY papers DESC, source, target
LIMIT $limit`

	topCollaborationsQuery = `
MATCH (p:Paper)
WHERE size(coalesce(p.authors, [])) > 1
UNWIND p.authors AS a1
UNWIND p.authors AS a2
WITH a1, a2, p
WHERE a1 < a2
WITH a1, a2, count(DISTINCT p) AS papers
WHERE papers >= 2
RETURN a1 AS source, a2 AS target, papers
ORDER BY papers DESC, source, target
LIMIT $limit`
)

func (s *GraphStorage) Collaborations(ctx context.Context, author string, limit int) ([]store.Collaboration, error) {
	author = strings.ToLower(strings.TrimSpace(author))
	query, params := topCollaborationsQuery, map[string]any{"limit": int64(limit)}
	if author != "" {
		query = authorCollaborationsQuery
		params["author"] = author
	}

	records, err := s.read(ctx, "collaborations", query, params)
	if err != nil {
		return nil, err
	}
	out := make([]store.Collaboration, 0, len(records))
	for _, rec := range records {
		out = append(out, store.Collaboration{
			Source: stringValue(rec, "source"),
			Target: stringValue(rec, "target"),
			Papers: intValue(rec, "papers"),
		})
	}
	return out, nil
}
