package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/NimaFathima/astrobiomers/pkg/common"
)

var (
	// ErrUnavailable wraps every failure of a backing store. Callers map it
	// to "service unavailable"; it never means the data is absent.
	ErrUnavailable = errors.New("store unavailable")
	// ErrNotFound is returned by single-record lookups when the record does
	// not exist.
	ErrNotFound = errors.New("not found")
)

// GraphStorage defines the knowledge graph operations used by the ETL
// pipeline, the evidence service and the RAG orchestrator. Node ids are the
// natural ids assigned by EntityID and PaperID.
type GraphStorage interface {
	EnsureSchema(ctx context.Context) error

	UpsertPapers(ctx context.Context, papers []common.Paper) error
	UpsertEntities(ctx context.Context, entities []EntityRecord) error
	LinkMentions(ctx context.Context, mentions []Mention) error
	UpsertRelationships(ctx context.Context, relations []RelationshipRecord) error

	// FindEntities returns entities whose name contains any of terms,
	// case-insensitively.
	FindEntities(ctx context.Context, terms []string, limit int) ([]GraphNode, error)
	GetNode(ctx context.Context, id string) (GraphNode, error)
	// Neighbors returns the nodes within depth hops (1 to 3) of id.
	Neighbors(ctx context.Context, id string, depth, limit int) (Neighborhood, error)
	// EntityContext returns the papers mentioning an entity and its direct
	// neighbours restricted to types.
	EntityContext(ctx context.Context, id string, types []NodeType, maxPapers, maxRelated int) (EntityContext, error)
	RandomPapers(ctx context.Context, n int) ([]common.Paper, error)
	Statistics(ctx context.Context) (Statistics, error)

	// EdgeEvidence returns the relationship between two nodes together with
	// the papers linked to both. A nil record means no relationship exists.
	EdgeEvidence(ctx context.Context, sourceID, targetID string, relType string) (*EdgeRecord, error)
	EdgesByPaperCount(ctx context.Context, limit int) ([]common.EdgeEvidence, error)
	PapersByEntities(ctx context.Context, names []string, minMatches, limit int) ([]PaperMatch, error)

	SearchEntities(ctx context.Context, q EntityQuery) ([]GraphNode, error)
	// SearchPapers matches text against titles, abstracts and MeSH terms.
	SearchPapers(ctx context.Context, text string, limit, offset int) ([]common.Paper, error)
	// EntityPapers lists the papers mentioning an entity, newest first.
	EntityPapers(ctx context.Context, id string, limit, offset int) ([]common.Paper, error)
	TopEntities(ctx context.Context, t NodeType, metric RankMetric, limit int) ([]RankedNode, error)
	// CoOccurring ranks the entities mentioned by the same papers as id.
	CoOccurring(ctx context.Context, id string, limit int) ([]RankedNode, error)
	TopicPairs(ctx context.Context, minPapers, limit int) ([]TopicPair, error)
	// PublicationsByYear counts papers per year in [startYear, endYear],
	// restricted to papers mentioning topic when it is not empty.
	PublicationsByYear(ctx context.Context, topic string, startYear, endYear int) ([]YearCount, error)
	EmergingTopics(ctx context.Context, windowYears, minPapers, limit int) ([]TopicGrowth, error)
	TopAuthors(ctx context.Context, topic string, limit int) ([]AuthorStats, error)
	// Collaborations returns co-author pairs. With an author filter the
	// pairs are the matching authors and their co-authors; without one they
	// are the pairs sharing at least two papers.
	Collaborations(ctx context.Context, author string, limit int) ([]Collaboration, error)
	ShortestPath(ctx context.Context, sourceID, targetID string, maxLength int) (Path, error)

	Close(ctx context.Context) error
}

// PaperStorage is the document corpus.
type PaperStorage interface {
	UpsertPapers(ctx context.Context, papers []common.Paper) error
	GetPaper(ctx context.Context, pmid string) (common.Paper, error)
	ListPapers(ctx context.Context, limit, offset int) ([]common.Paper, error)
	// SimilarPapers ranks papers with an abstract embedding by cosine
	// distance to embedding.
	SimilarPapers(ctx context.Context, embedding []float32, limit int) ([]ScoredPaper, error)
	Close()
}

// NodeType is the resolved kind of a graph node.
type NodeType string

const (
	NodePaper        NodeType = "Paper"
	NodeGene         NodeType = "Gene"
	NodeProtein      NodeType = "Protein"
	NodeDisease      NodeType = "Disease"
	NodeChemical     NodeType = "Chemical"
	NodeMetabolite   NodeType = "Metabolite"
	NodeStressor     NodeType = "Stressor"
	NodePhenotype    NodeType = "Phenotype"
	NodeOrganism     NodeType = "Organism"
	NodeCellType     NodeType = "CellType"
	NodeIntervention NodeType = "Intervention"
	NodeTissue       NodeType = "Tissue"
	NodePathway      NodeType = "Pathway"
	NodeEntity       NodeType = "Entity"
)

// EntityLabel is the label carried by every entity node next to its type
// label.
const EntityLabel = "Entity"

// nodeTypePriority decides which label wins when a node carries several.
var nodeTypePriority = []NodeType{
	NodePaper,
	NodeGene,
	NodeProtein,
	NodeDisease,
	NodeStressor,
	NodePhenotype,
	NodeOrganism,
	NodeCellType,
	NodeIntervention,
	NodeTissue,
	NodePathway,
	NodeChemical,
	NodeMetabolite,
}

var entityNodeTypes = map[common.EntityType]NodeType{
	common.EntityGene:         NodeGene,
	common.EntityProtein:      NodeProtein,
	common.EntityDisease:      NodeDisease,
	common.EntityChemical:     NodeChemical,
	common.EntityMetabolite:   NodeMetabolite,
	common.EntityStressor:     NodeStressor,
	common.EntityPhenotype:    NodePhenotype,
	common.EntityOrganism:     NodeOrganism,
	common.EntityCellType:     NodeCellType,
	common.EntityIntervention: NodeIntervention,
	common.EntityTissue:       NodeTissue,
	common.EntityPathway:      NodePathway,
}

// ResolveNodeType picks the type of a node from its labels. Known labels
// win in nodeTypePriority order; otherwise the first label other than
// Entity is used, and a node without labels is NodeEntity.
func ResolveNodeType(labels []string) NodeType {
	for _, t := range nodeTypePriority {
		for _, l := range labels {
			if l == string(t) {
				return t
			}
		}
	}
	for _, l := range labels {
		if l != "" && l != EntityLabel {
			return NodeType(l)
		}
	}
	return NodeEntity
}

// NodeTypeOf maps an entity type to its node label.
func NodeTypeOf(t common.EntityType) NodeType {
	if nt, ok := entityNodeTypes[t]; ok {
		return nt
	}
	return NodeEntity
}

// ParseNodeType resolves an entity type name such as "gene" or "CellType"
// case-insensitively. Paper and unknown names are rejected.
func ParseNodeType(name string) (NodeType, bool) {
	for _, t := range nodeTypePriority {
		if t != NodePaper && strings.EqualFold(string(t), name) {
			return t, true
		}
	}
	return "", false
}

// EntityType maps a node type back to an entity type.
func (t NodeType) EntityType() common.EntityType {
	for et, nt := range entityNodeTypes {
		if nt == t {
			return et
		}
	}
	return common.EntityUnknown
}

// EntityID is the natural id of an entity node.
func EntityID(t common.EntityType, name string) string {
	return strings.ToLower(string(t)) + ":" + strings.ToLower(strings.TrimSpace(name))
}

// PaperID is the natural id of a paper node.
func PaperID(p common.Paper) string {
	return p.ID()
}

// GraphNode is a node of the knowledge graph with its resolved type.
type GraphNode struct {
	Type       NodeType       `json:"type"`
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
}

// NewGraphNode builds a node from raw labels and properties.
func NewGraphNode(labels []string, props map[string]any) GraphNode {
	if props == nil {
		props = map[string]any{}
	}
	id, _ := props["id"].(string)
	return GraphNode{Type: ResolveNodeType(labels), ID: id, Properties: props}
}

// Name returns the display name of the node.
func (n GraphNode) Name() string {
	for _, k := range []string{"name", "symbol", "title"} {
		if v, ok := n.Properties[k].(string); ok && v != "" {
			return v
		}
	}
	return n.ID
}

// IsPaper reports whether the node is a paper.
func (n GraphNode) IsPaper() bool {
	return n.Type == NodePaper
}

// Entity returns the API view of an entity node.
func (n GraphNode) Entity() common.GraphEntity {
	return common.GraphEntity{ID: n.ID, Name: n.Name(), Type: n.Type.EntityType()}
}

// Paper converts a paper node back into a corpus record.
func (n GraphNode) Paper() common.Paper {
	p := common.Paper{
		PMID:     stringProp(n.Properties, "pmid"),
		Title:    stringProp(n.Properties, "title"),
		Abstract: stringProp(n.Properties, "abstract"),
		DOI:      stringProp(n.Properties, "doi"),
		Journal:  stringProp(n.Properties, "journal"),
		Source:   stringProp(n.Properties, "source"),
		Authors:  stringsProp(n.Properties, "authors"),
	}
	p.MeshTerms = stringsProp(n.Properties, "mesh_terms")
	p.PublicationYear = intProp(n.Properties, "publication_year")
	return p
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func stringsProp(props map[string]any, key string) []string {
	switch v := props[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// EntityRecord is an entity node to upsert.
type EntityRecord struct {
	ID         string
	Name       string
	Type       common.EntityType
	Mentions   int
	Confidence float64
}

// Mention links a paper to an entity it mentions.
type Mention struct {
	PaperID    string
	EntityID   string
	Count      int
	Confidence float64
}

// RelationshipRecord is a typed edge between two entity nodes.
type RelationshipRecord struct {
	SourceID   string
	TargetID   string
	Type       common.RelationType
	Confidence float64
	Count      int
	PMIDs      []string
	Evidence   []string
	Methods    []string
}

// Edge is a directed edge between two nodes identified by id.
type Edge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Neighborhood is a node and the nodes reachable from it.
type Neighborhood struct {
	Center GraphNode   `json:"center"`
	Nodes  []GraphNode `json:"nodes"`
	Edges  []Edge      `json:"edges"`
}

// RelatedNode is a neighbour reached over an edge of type RelType.
type RelatedNode struct {
	Node    GraphNode
	RelType string
}

// EntityContext is an entity with its mentioning papers and neighbours.
type EntityContext struct {
	Entity  GraphNode
	Papers  []common.Paper
	Related []RelatedNode
}

// EdgeRecord is a relationship together with its supporting papers.
type EdgeRecord struct {
	Source     GraphNode
	Target     GraphNode
	Type       string
	Properties map[string]any
	Papers     []common.Paper
}

// PaperMatch is a paper together with how many of the queried entities it
// mentions.
type PaperMatch struct {
	Paper            common.Paper `json:"paper"`
	MatchingEntities int          `json:"matching_entities"`
}

// ScoredPaper is a paper with its similarity to a query embedding.
type ScoredPaper struct {
	Paper      common.Paper `json:"paper"`
	Similarity float64      `json:"similarity"`
}

// Statistics are node and edge counts by label and type.
type Statistics struct {
	Nodes              map[string]int64 `json:"nodes"`
	TotalNodes         int64            `json:"total_nodes"`
	Relationships      map[string]int64 `json:"relationships"`
	TotalRelationships int64            `json:"total_relationships"`
}

// EntityQuery selects entity nodes by name. An empty Text matches every
// entity; Prefix anchors Text at the start of the name.
type EntityQuery struct {
	Text   string
	Prefix bool
	Type   NodeType
	Limit  int
	Offset int
}

// RankMetric orders TopEntities.
type RankMetric string

const (
	RankByPapers RankMetric = "paper_count"
	RankByDegree RankMetric = "degree"
)

func (m RankMetric) IsValid() bool {
	return m == RankByPapers || m == RankByDegree
}

// RankedNode is a node with the score it was ranked by.
type RankedNode struct {
	Node  GraphNode `json:"node"`
	Score int64     `json:"score"`
}

// TopicPair is two entities mentioned together by Papers papers.
type TopicPair struct {
	First    GraphNode `json:"first"`
	Second   GraphNode `json:"second"`
	Papers   int64     `json:"co_occurrence_count"`
	Strength string    `json:"strength"`
}

// PairStrength buckets a co-occurrence count.
func PairStrength(papers int64) string {
	switch {
	case papers >= 10:
		return "strong"
	case papers >= 5:
		return "moderate"
	default:
		return "weak"
	}
}

type YearCount struct {
	Year   int   `json:"year"`
	Papers int64 `json:"paper_count"`
}

// TopicGrowth compares how often an entity is mentioned in the latest
// window of years against all earlier years.
type TopicGrowth struct {
	Entity     GraphNode `json:"entity"`
	Recent     int64     `json:"recent_papers"`
	Historical int64     `json:"historical_papers"`
	GrowthRate float64   `json:"growth_rate"`
	Status     string    `json:"status"`
}

// AuthorStats summarises the papers of one author. Years are zero when no
// paper of the author has a publication year.
type AuthorStats struct {
	Name          string  `json:"name"`
	Papers        int64   `json:"paper_count"`
	FirstYear     int     `json:"first_year"`
	LastYear      int     `json:"last_year"`
	YearsActive   int     `json:"years_active"`
	PapersPerYear float64 `json:"papers_per_year"`
}

type Collaboration struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Papers int64  `json:"weight"`
}

// Path is a shortest path between two nodes. Found is false when the nodes
// exist but are not connected within the length bound.
type Path struct {
	Found bool        `json:"found"`
	Nodes []GraphNode `json:"nodes"`
	Edges []Edge      `json:"edges"`
}

// JobStatus is the state of an ingest job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IngestJob tracks one message of the ingest queue.
type IngestJob struct {
	ID         string     `json:"id"`
	Status     JobStatus  `json:"status"`
	PaperCount int        `json:"paper_count"`
	Successful int        `json:"successful"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobStorage records the progress of ingest jobs.
type JobStorage interface {
	CreateJob(ctx context.Context, id string, paperCount int) error
	UpdateJobStatus(ctx context.Context, id string, status JobStatus) error
	FinishJob(ctx context.Context, id string, summary common.BatchSummary, jobErr error) error
	GetJob(ctx context.Context, id string) (IngestJob, error)
}
