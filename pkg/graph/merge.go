package graph

import (
	"slices"
	"strings"

	"github.com/NimaFathima/astrobiomers/pkg/aggregate"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	mapset "github.com/deckarep/golang-set/v2"
)

// resolver merges entity mentions across papers into one record per
// EntityID. The first name seen for an id is kept. Records changed since
// the last flush are tracked so each batch writes only what it touched.
type resolver struct {
	entities map[string]*store.EntityRecord
	order    []string
	dirty    mapset.Set[string]
}

func newResolver() *resolver {
	return &resolver{
		entities: make(map[string]*store.EntityRecord),
		dirty:    mapset.NewThreadUnsafeSet[string](),
	}
}

func (r *resolver) add(m common.EntityMention) string {
	name := strings.TrimSpace(m.Name())
	id := store.EntityID(m.Type, name)
	e, ok := r.entities[id]
	if !ok {
		e = &store.EntityRecord{ID: id, Name: name, Type: m.Type}
		r.entities[id] = e
		r.order = append(r.order, id)
	}
	e.Mentions++
	e.Confidence = max(e.Confidence, m.Confidence)
	r.dirty.Add(id)
	return id
}

// flush returns the records changed since the previous flush in first-seen
// order.
func (r *resolver) flush() []store.EntityRecord {
	out := make([]store.EntityRecord, 0, r.dirty.Cardinality())
	for _, id := range r.order {
		if r.dirty.Contains(id) {
			out = append(out, *r.entities[id])
		}
	}
	r.dirty.Clear()
	return out
}

// mentionsOf resolves the mentions of one paper into MENTIONS links, one per
// distinct entity.
func mentionsOf(pe common.PaperEntities, r *resolver) []store.Mention {
	paperID := store.PaperID(pe.Paper)
	index := make(map[string]int)
	var out []store.Mention
	for _, m := range pe.Entities {
		if strings.TrimSpace(m.Name()) == "" {
			continue
		}
		id := r.add(m)
		if i, ok := index[id]; ok {
			out[i].Count++
			out[i].Confidence = max(out[i].Confidence, m.Confidence)
			continue
		}
		index[id] = len(out)
		out = append(out, store.Mention{PaperID: paperID, EntityID: id, Count: 1, Confidence: m.Confidence})
	}
	return out
}

// relationshipRecords converts aggregated relationships into graph edges
// between resolved entity ids. Evidence and PMIDs are stored in a stable
// order.
func relationshipRecords(rels []*aggregate.AggregatedRelationship) []store.RelationshipRecord {
	out := make([]store.RelationshipRecord, 0, len(rels))
	for _, r := range rels {
		out = append(out, store.RelationshipRecord{
			SourceID:   store.EntityID(r.SourceType, r.Source),
			TargetID:   store.EntityID(r.TargetType, r.Target),
			Type:       r.RelationType,
			Confidence: r.FinalConfidence,
			Count:      r.Count,
			PMIDs:      r.PMIDList(),
			Evidence:   slices.Clone(r.EvidenceSentences),
			Methods:    r.MethodList(),
		})
	}
	return out
}

// endpointEntities returns entity records for relationship endpoints so
// that every edge has both nodes even when a name was only seen through a
// relation.
func endpointEntities(rels []*aggregate.AggregatedRelationship, r *resolver) {
	for _, rel := range rels {
		for _, end := range []struct {
			name string
			typ  common.EntityType
		}{{rel.Source, rel.SourceType}, {rel.Target, rel.TargetType}} {
			id := store.EntityID(end.typ, end.name)
			if _, ok := r.entities[id]; ok {
				continue
			}
			r.entities[id] = &store.EntityRecord{ID: id, Name: end.name, Type: end.typ}
			r.order = append(r.order, id)
			r.dirty.Add(id)
		}
	}
}
