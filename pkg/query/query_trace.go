package query

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

type TraceEventKind string

const (
	TraceEventCues                TraceEventKind = "cues"
	TraceEventQueriedEntityIDs    TraceEventKind = "queried_entity_ids"
	TraceEventConsideredSourceIDs TraceEventKind = "considered_source_ids"
	TraceEventUsedSourceIDs       TraceEventKind = "used_source_ids"
	TraceEventLLMFallback         TraceEventKind = "llm_fallback"
)

// TraceEvent is an extensible event envelope for query tracing.
type TraceEvent struct {
	Kind TraceEventKind

	Values []string
	Error  string
}

// Tracer is a sink for query tracing events.
type Tracer interface {
	Record(event TraceEvent)
}

func RecordCues(t Tracer, cues ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventCues, Values: cues})
}

func RecordQueriedEntityIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventQueriedEntityIDs, Values: ids})
}

func RecordConsideredSourceIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventConsideredSourceIDs, Values: ids})
}

func RecordUsedSourceIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventUsedSourceIDs, Values: ids})
}

func RecordLLMFallback(t Tracer, err error) {
	if t == nil || err == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventLLMFallback, Error: err.Error()})
}

// QueryTrace collects what a question looked at: the cues it extracted,
// the entities it queried and the papers it considered and cited.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	cues       mapset.Set[string]
	entityIDs  mapset.Set[string]
	considered mapset.Set[string]
	used       mapset.Set[string]
	fallbacks  mapset.Set[string]
}

type QueryTraceSnapshot struct {
	Cues                []string `json:"cues"`
	QueriedEntityIDs    []string `json:"queried_entity_ids"`
	ConsideredSourceIDs []string `json:"considered_source_ids"`
	UsedSourceIDs       []string `json:"used_source_ids"`
	LLMErrors           []string `json:"llm_errors,omitempty"`
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		cues:       mapset.NewSet[string](),
		entityIDs:  mapset.NewSet[string](),
		considered: mapset.NewSet[string](),
		used:       mapset.NewSet[string](),
		fallbacks:  mapset.NewSet[string](),
	}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	var target mapset.Set[string]
	switch event.Kind {
	case TraceEventCues:
		target = t.cues
	case TraceEventQueriedEntityIDs:
		target = t.entityIDs
	case TraceEventConsideredSourceIDs:
		target = t.considered
	case TraceEventUsedSourceIDs:
		target = t.used
	case TraceEventLLMFallback:
		t.fallbacks.Add(event.Error)
		return
	default:
		return
	}

	for _, v := range event.Values {
		if v == "" {
			continue
		}
		target.Add(v)
	}
}

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	slices.Sort(out)
	return out
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}
	return QueryTraceSnapshot{
		Cues:                sorted(t.cues),
		QueriedEntityIDs:    sorted(t.entityIDs),
		ConsideredSourceIDs: sorted(t.considered),
		UsedSourceIDs:       sorted(t.used),
		LLMErrors:           sorted(t.fallbacks),
	}
}
