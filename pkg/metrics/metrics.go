// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Extraction metrics
	EntitiesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrobiomers_entities_extracted_total",
			Help: "Entity mentions kept after dedup and thresholding",
		},
		[]string{"entity_type"},
	)

	RelationsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrobiomers_relations_extracted_total",
			Help: "Relationship candidates kept after dedup and negation filtering",
		},
		[]string{"method"},
	)

	RelationsNegated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "astrobiomers_relations_negated_total",
		Help: "Relationship candidates dropped because of negation",
	})

	BackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrobiomers_ner_backend_errors_total",
			Help: "Failures of optional entity extraction backends",
		},
		[]string{"backend"},
	)

	DocumentProcessingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrobiomers_document_processing_errors_total",
			Help: "Documents that failed a pipeline stage",
		},
		[]string{"stage"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrobiomers_cache_hits_total",
			Help: "Number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrobiomers_cache_misses_total",
			Help: "Number of cache misses",
		},
		[]string{"cache_type"},
	)

	// RAG metrics
	RAGRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrobiomers_rag_requests_total",
			Help: "Answered questions by answer mode",
		},
		[]string{"mode"},
	)

	LLMFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "astrobiomers_llm_fallbacks_total",
		Help: "LLM calls that failed and fell back to the deterministic answer",
	})

	RAGDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "astrobiomers_rag_duration_seconds",
		Help:    "Time to answer a question",
		Buckets: prometheus.DefBuckets,
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "astrobiomers_conversation_sessions",
		Help: "Conversation sessions currently held in memory",
	})

	// Graph metrics
	GraphNodeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "astrobiomers_graph_nodes",
			Help: "Number of nodes in the graph by label",
		},
		[]string{"node_type"},
	)

	GraphEdgeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "astrobiomers_graph_edges",
			Help: "Number of edges in the graph by type",
		},
		[]string{"edge_type"},
	)

	PipelineQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "astrobiomers_pipeline_queue_length",
		Help: "Papers waiting to be processed by the current batch",
	})

	// System metrics
	SystemMemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "astrobiomers_memory_bytes",
		Help: "Current heap allocation",
	})

	SystemGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "astrobiomers_goroutines",
		Help: "Number of goroutines",
	})
)

// UpdateSystemMetrics refreshes the runtime gauges.
func UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	SystemMemoryUsage.Set(float64(m.Alloc))
	SystemGoroutines.Set(float64(runtime.NumGoroutine()))
}

// SetGraphCounts replaces the graph gauges with the given label and type
// counts.
func SetGraphCounts(nodes, edges map[string]int64) {
	GraphNodeCount.Reset()
	for label, n := range nodes {
		GraphNodeCount.WithLabelValues(label).Set(float64(n))
	}
	GraphEdgeCount.Reset()
	for relType, n := range edges {
		GraphEdgeCount.WithLabelValues(relType).Set(float64(n))
	}
}
