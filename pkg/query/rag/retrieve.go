package rag

import (
	"context"

	"github.com/NimaFathima/astrobiomers/internal/util"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/query"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	"golang.org/x/sync/errgroup"
)

const (
	maxEntities      = 10
	maxRelated       = 20
	paperLabelLength = 50
	maxSnippets      = 5
	snippetLength    = 500
	retrieveParallel = 4
	defaultRelType   = string(common.RelAssociatedWith)
)

var relatedTypes = []store.NodeType{store.NodeStressor, store.NodePhenotype, store.NodeGene}

type subgraph struct {
	nodes      []common.SubgraphNode
	edges      []common.SubgraphEdge
	papers     []common.Paper
	paperCount int
	// sampled is set when papers are a random sample rather than papers
	// matching the question. They feed the LLM context but are never
	// returned as sources.
	sampled bool
}

func emptySubgraph() subgraph {
	return subgraph{nodes: []common.SubgraphNode{}, edges: []common.SubgraphEdge{}, papers: []common.Paper{}}
}

// subgraphBuilder collects nodes and papers once per id.
type subgraphBuilder struct {
	sub      subgraph
	nodeSeen map[string]bool
	paperIdx map[string]bool
	edgeSeen map[common.SubgraphEdge]bool
}

func newSubgraphBuilder() *subgraphBuilder {
	return &subgraphBuilder{
		sub:      emptySubgraph(),
		nodeSeen: map[string]bool{},
		paperIdx: map[string]bool{},
		edgeSeen: map[common.SubgraphEdge]bool{},
	}
}

func (b *subgraphBuilder) node(n common.SubgraphNode) {
	if b.nodeSeen[n.ID] {
		return
	}
	b.nodeSeen[n.ID] = true
	b.sub.nodes = append(b.sub.nodes, n)
}

func (b *subgraphBuilder) edge(e common.SubgraphEdge) {
	if b.edgeSeen[e] {
		return
	}
	b.edgeSeen[e] = true
	b.sub.edges = append(b.sub.edges, e)
}

// paper adds p and returns its node id.
func (b *subgraphBuilder) paper(p common.Paper) string {
	id := p.ID()
	b.node(common.SubgraphNode{ID: id, Label: util.Truncate(p.Title, paperLabelLength), Type: string(store.NodePaper)})
	if !b.paperIdx[id] {
		b.paperIdx[id] = true
		b.sub.papers = append(b.sub.papers, p)
	}
	return id
}

func (b *subgraphBuilder) build(maxPapers int) subgraph {
	b.sub.paperCount = len(b.sub.papers)
	if len(b.sub.papers) > maxPapers {
		b.sub.papers = b.sub.papers[:maxPapers]
	}
	return b.sub
}

// retrieve loads the subgraph around the entities matching cues. Without
// cues it samples random papers as background. Store failures degrade to an
// empty subgraph.
func (o *Orchestrator) retrieve(ctx context.Context, cues []string, maxPapers int, tracer query.Tracer) subgraph {
	if len(cues) == 0 {
		papers, err := o.graph.RandomPapers(ctx, maxPapers)
		if err != nil {
			logger.Error("[RAG] Failed to sample papers", "err", err)
			return emptySubgraph()
		}
		sub := emptySubgraph()
		sub.papers = papers
		sub.paperCount = len(papers)
		sub.sampled = true
		recordPapers(tracer, papers)
		return sub
	}

	entities, err := o.graph.FindEntities(ctx, cues, maxEntities)
	if err != nil {
		logger.Error("[RAG] Subgraph retrieval failed", "err", err)
		return emptySubgraph()
	}

	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	query.RecordQueriedEntityIDs(tracer, ids...)

	contexts := make([]*store.EntityContext, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(retrieveParallel)
	for i, e := range entities {
		g.Go(func() error {
			ec, err := o.graph.EntityContext(gctx, e.ID, relatedTypes, maxPapers, maxRelated)
			if err != nil {
				logger.Warn("[RAG] Failed to load entity context", "entity", e.ID, "err", err)
				return nil
			}
			contexts[i] = &ec
			return nil
		})
	}
	_ = g.Wait()

	b := newSubgraphBuilder()
	for i, ec := range contexts {
		entity := entities[i]
		if ec != nil && ec.Entity.ID != "" {
			entity = ec.Entity
		}
		b.node(common.SubgraphNode{ID: entity.ID, Label: entity.Name(), Type: string(entity.Type)})
		if ec == nil {
			continue
		}

		for _, p := range ec.Papers {
			pid := b.paper(p)
			b.edge(common.SubgraphEdge{Source: pid, Target: entity.ID, Type: "MENTIONS"})
		}
		for _, r := range ec.Related {
			b.node(common.SubgraphNode{ID: r.Node.ID, Label: r.Node.Name(), Type: string(r.Node.Type)})
			relType := r.RelType
			if relType == "" {
				relType = defaultRelType
			}
			b.edge(common.SubgraphEdge{Source: entity.ID, Target: r.Node.ID, Type: relType})
		}
	}

	sub := b.build(maxPapers)
	recordPapers(tracer, sub.papers)
	return sub
}

func recordPapers(tracer query.Tracer, papers []common.Paper) {
	ids := make([]string, len(papers))
	for i, p := range papers {
		ids[i] = p.ID()
	}
	query.RecordConsideredSourceIDs(tracer, ids...)
}

type snippet struct {
	title string
	year  int
	text  string
}

func snippets(papers []common.Paper) []snippet {
	out := make([]snippet, 0, maxSnippets)
	for _, p := range papers {
		if len(out) == maxSnippets {
			break
		}
		out = append(out, snippet{title: p.Title, year: p.PublicationYear, text: util.Truncate(p.Abstract, snippetLength)})
	}
	return out
}
