package common

import "time"

// EntityType is the biomedical category of an entity mention.
type EntityType string

const (
	EntityGene         EntityType = "GENE"
	EntityProtein      EntityType = "PROTEIN"
	EntityDisease      EntityType = "DISEASE"
	EntityChemical     EntityType = "CHEMICAL"
	EntityMetabolite   EntityType = "METABOLITE"
	EntityStressor     EntityType = "STRESSOR"
	EntityPhenotype    EntityType = "PHENOTYPE"
	EntityOrganism     EntityType = "ORGANISM"
	EntityCellType     EntityType = "CELL_TYPE"
	EntityIntervention EntityType = "INTERVENTION"
	EntityTissue       EntityType = "TISSUE"
	EntityPathway      EntityType = "PATHWAY"
	EntityUnknown      EntityType = "UNKNOWN"
)

// RelationType is the semantic type of an edge between two entities.
type RelationType string

const (
	RelUpregulates    RelationType = "UPREGULATES"
	RelDownregulates  RelationType = "DOWNREGULATES"
	RelCauses         RelationType = "CAUSES"
	RelTreats         RelationType = "TREATS"
	RelInteractsWith  RelationType = "INTERACTS_WITH"
	RelPartOf         RelationType = "PART_OF"
	RelAssociatedWith RelationType = "ASSOCIATED_WITH"
)

// RelationTypes lists every relation type in a stable order.
var RelationTypes = []RelationType{
	RelUpregulates,
	RelDownregulates,
	RelCauses,
	RelTreats,
	RelInteractsWith,
	RelPartOf,
	RelAssociatedWith,
}

// IsValid reports whether r is one of the known relation types.
func (r RelationType) IsValid() bool {
	for _, t := range RelationTypes {
		if t == r {
			return true
		}
	}
	return false
}

// EntityMention is a span of text tagged with a biomedical category.
// Start and End are byte offsets into the text the mention was found in.
//
// CanonicalName is set by extractors that normalise surface synonyms
// ("zero-g", "weightlessness") onto one label ("Microgravity"). Downstream
// resolution prefers it over Text.
type EntityMention struct {
	Text          string     `json:"text"`
	Type          EntityType `json:"type"`
	Start         int        `json:"start"`
	End           int        `json:"end"`
	Confidence    float64    `json:"confidence"`
	Source        string     `json:"source"`
	CanonicalName string     `json:"canonical_name,omitempty"`
}

// Name returns the canonical name if one is set, otherwise the literal text.
func (e EntityMention) Name() string {
	if e.CanonicalName != "" {
		return e.CanonicalName
	}
	return e.Text
}

// RelationCandidate is an untrusted, document-scoped assertion that two
// entities are related.
type RelationCandidate struct {
	SourceText       string       `json:"source"`
	SourceType       EntityType   `json:"source_type"`
	TargetText       string       `json:"target"`
	TargetType       EntityType   `json:"target_type"`
	RelationType     RelationType `json:"relation_type"`
	Confidence       float64      `json:"confidence"`
	Evidence         string       `json:"evidence"`
	TriggerWord      string       `json:"trigger_word"`
	ExtractionMethod string       `json:"extraction_method"`

	PMID            string `json:"pmid,omitempty"`
	DOI             string `json:"doi,omitempty"`
	PublicationYear int    `json:"publication_year,omitempty"`
	PaperTitle      string `json:"paper_title,omitempty"`

	// TriggerStart is the byte offset of the trigger in the source text,
	// or -1 when the relation has no locatable trigger.
	TriggerStart int `json:"-"`
}

// Paper is a document corpus record.
type Paper struct {
	PMID            string    `json:"pmid"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	PublicationYear int       `json:"publication_year,omitempty"`
	Authors         []string  `json:"authors,omitempty"`
	DOI             string    `json:"doi,omitempty"`
	Journal         string    `json:"journal,omitempty"`
	MeshTerms       []string  `json:"mesh_terms,omitempty"`
	Source          string    `json:"source,omitempty"`
	Embedding       []float32 `json:"-"`
}

// ID returns the natural identifier of the paper: the PMID, else the DOI,
// else the title.
func (p Paper) ID() string {
	switch {
	case p.PMID != "":
		return p.PMID
	case p.DOI != "":
		return p.DOI
	default:
		return p.Title
	}
}

// Text returns the text that extraction runs on.
func (p Paper) Text() string {
	return p.Title + " " + p.Abstract
}

// PaperEntities is a paper together with the entities extracted from it.
type PaperEntities struct {
	Paper       Paper              `json:"paper"`
	Entities    []EntityMention    `json:"entities"`
	EntityCount int                `json:"entity_count"`
	EntityTypes map[EntityType]int `json:"entity_types"`
}

// BatchError records a single failed item of a batch operation.
type BatchError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchSummary reports partial success of a batch operation.
type BatchSummary struct {
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Errors     []BatchError `json:"errors"`
}

// BatchResult holds the per-item output of a batch operation together with
// its summary. Items keeps the input order.
type BatchResult[T any] struct {
	Items   []T          `json:"items"`
	Summary BatchSummary `json:"summary"`
}

// ConfidenceLabel is the qualitative strength of the literature backing an edge.
type ConfidenceLabel string

const (
	ConfidenceHigh       ConfidenceLabel = "high"
	ConfidenceMedium     ConfidenceLabel = "medium"
	ConfidenceLow        ConfidenceLabel = "low"
	ConfidenceUnverified ConfidenceLabel = "unverified"
)

// EvidencePaper is a paper supporting an edge.
type EvidencePaper struct {
	PMID            string   `json:"pmid"`
	Title           string   `json:"title"`
	Year            int      `json:"year,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	AbstractSnippet string   `json:"abstract_snippet,omitempty"`
}

// EvidenceRecord is the set of documents justifying a specific graph edge.
// Found is false when no relationship exists between the two nodes; that is
// a normal result, not an error.
type EvidenceRecord struct {
	Found            bool            `json:"found"`
	Message          string          `json:"message,omitempty"`
	Source           *GraphEntity    `json:"source,omitempty"`
	Target           *GraphEntity    `json:"target,omitempty"`
	RelationshipType string          `json:"relationship_type,omitempty"`
	Relationship     map[string]any  `json:"relationship,omitempty"`
	Papers           []EvidencePaper `json:"papers"`
	EvidenceCount    int             `json:"evidence_count"`
	ConfidenceLabel  ConfidenceLabel `json:"confidence"`
}

// EdgeEvidence is one row of the edge audit listing.
type EdgeEvidence struct {
	SourceID         string          `json:"source_id"`
	SourceName       string          `json:"source_name"`
	TargetID         string          `json:"target_id"`
	TargetName       string          `json:"target_name"`
	RelationshipType string          `json:"relationship_type"`
	PaperCount       int             `json:"evidence_count"`
	Confidence       ConfidenceLabel `json:"confidence"`
}

// GraphEntity is the API view of an entity node.
type GraphEntity struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Type EntityType `json:"type"`
}

// SubgraphNode is a node of a retrieved subgraph.
type SubgraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// SubgraphEdge is an edge of a retrieved subgraph.
type SubgraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Subgraph is a bounded neighbourhood of graph nodes relevant to a query.
type Subgraph struct {
	Nodes []SubgraphNode `json:"nodes"`
	Edges []SubgraphEdge `json:"edges"`
}

// Source is a formatted citation attached to a RAG answer.
type Source struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
	URL   string `json:"url,omitempty"`
}

// RAGMetadata describes how a RAG answer was produced.
type RAGMetadata struct {
	EntityCount int       `json:"entity_count"`
	PaperCount  int       `json:"paper_count"`
	LLMProvider string    `json:"llm_provider"`
	Timestamp   time.Time `json:"timestamp"`
}

// RAGResponse is the per-request answer of the RAG orchestrator.
type RAGResponse struct {
	Question string      `json:"question"`
	Answer   string      `json:"answer"`
	Sources  []Source    `json:"sources"`
	Subgraph Subgraph    `json:"subgraph"`
	Metadata RAGMetadata `json:"metadata"`
}
