// Package app builds the services shared by the server, the worker and the
// pipeline CLI from a config.Config.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/NimaFathima/astrobiomers/internal/config"
	"github.com/NimaFathima/astrobiomers/pkg/aggregate"
	"github.com/NimaFathima/astrobiomers/pkg/ai"
	oai "github.com/NimaFathima/astrobiomers/pkg/ai/ollama"
	gai "github.com/NimaFathima/astrobiomers/pkg/ai/openai"
	"github.com/NimaFathima/astrobiomers/pkg/evidence"
	"github.com/NimaFathima/astrobiomers/pkg/graph"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/logger/console"
	"github.com/NimaFathima/astrobiomers/pkg/logger/file"
	"github.com/NimaFathima/astrobiomers/pkg/ner"
	"github.com/NimaFathima/astrobiomers/pkg/query/rag"
	"github.com/NimaFathima/astrobiomers/pkg/relation"
	"github.com/NimaFathima/astrobiomers/pkg/store"
	neo4jstore "github.com/NimaFathima/astrobiomers/pkg/store/neo4j"
	pgxstore "github.com/NimaFathima/astrobiomers/pkg/store/pgx"
)

const (
	AdapterOpenAI = "openai"
	AdapterOllama = "ollama"
)

// InitLogger installs the console logger and, when LOG_FILE is set, the
// rotating file logger.
func InitLogger(cfg config.ServerConfig, prefix string) {
	instances := []logger.LoggerInstance{
		console.NewConsoleLogger(console.ConsoleLoggerParams{
			Debug:  cfg.Debug,
			Prefix: prefix,
		}),
	}
	if cfg.LogFile != "" {
		instances = append(instances, file.NewFileLogger(file.FileLoggerParams{
			Path:  cfg.LogFile,
			Debug: cfg.Debug,
		}))
	}
	logger.Init(instances...)
}

// NewAIClient returns the configured LLM adapter. An empty adapter returns
// a nil client and disables every LLM feature.
func NewAIClient(cfg config.AIConfig) (ai.GraphAIClient, error) {
	switch strings.ToLower(cfg.Adapter) {
	case "", "none":
		logger.Info("[AI] No LLM adapter configured, using deterministic fallbacks")
		return nil, nil
	case AdapterOllama:
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ChatModel:       cfg.ChatModel,
			ExtractionModel: cfg.ExtractModel,
			EmbeddingModel:  cfg.EmbedModel,
			EmbeddingDim:    cfg.EmbedDim,

			BaseURL: cfg.ChatURL,
			ApiKey:  cfg.ChatKey,

			Timeout:               cfg.Timeout,
			MaxConcurrentRequests: int64(cfg.MaxConcurrent),
		})
		if err != nil {
			return nil, fmt.Errorf("could not create Ollama client: %w", err)
		}
		return client, nil
	case AdapterOpenAI:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ChatModel:       cfg.ChatModel,
			ExtractionModel: cfg.ExtractModel,
			EmbeddingModel:  cfg.EmbedModel,
			EmbeddingDim:    cfg.EmbedDim,

			ChatURL:      cfg.ChatURL,
			ChatKey:      cfg.ChatKey,
			EmbeddingURL: cfg.EmbedURL,
			EmbeddingKey: cfg.EmbedKey,

			Timeout:               cfg.Timeout,
			MaxConcurrentRequests: int64(cfg.MaxConcurrent),
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI adapter %q", cfg.Adapter)
	}
}

// NewGraphClient builds the extraction pipeline. aiClient may be nil.
func NewGraphClient(cfg config.Config, aiClient ai.GraphAIClient) (*graph.GraphClient, error) {
	entities, err := ner.NewExtractor(ner.NewExtractorParams{
		Backends:  cfg.NER.Backends,
		AIClient:  aiClient,
		AIOptions: generateOptions(cfg.AI),
		Threshold: cfg.NER.Threshold,
		CacheSize: cfg.NER.CacheSize,
		CacheTTL:  cfg.NER.CacheTTL,
		Workers:   cfg.Pipeline.Workers,
	})
	if err != nil {
		return nil, err
	}

	return graph.NewGraphClient(graph.NewGraphClientParams{
		Entities:  entities,
		Relations: relation.NewExtractor(relation.NewExtractorParams{Workers: cfg.Pipeline.Workers}),
		Aggregator: aggregate.NewAggregator(aggregate.Params{
			PerDocumentBoost: cfg.Aggregate.PerDocumentBoost,
			MaxBoost:         cfg.Aggregate.MaxBoost,
			Cap:              cfg.Aggregate.Cap,
		}),
		AIClient:            aiClient,
		ConfidenceThreshold: cfg.Relation.ConfidenceThreshold,
		BatchSize:           cfg.Pipeline.BatchSize,
		ParallelAiRequests:  cfg.AI.MaxConcurrent,
	})
}

// generateOptions holds the per-call LLM options shared by extraction and
// answering.
func generateOptions(cfg config.AIConfig) []ai.GenerateOption {
	var opts []ai.GenerateOption
	if cfg.Thinking != "" {
		opts = append(opts, ai.WithThinking(cfg.Thinking))
	}
	return opts
}

func OpenGraph(ctx context.Context, cfg config.Neo4jConfig, batchSize int) (*neo4jstore.GraphStorage, error) {
	return neo4jstore.NewGraphStorage(ctx, neo4jstore.NewGraphStorageParams{
		URI:       cfg.URI,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		BatchSize: batchSize,
	})
}

// OpenCorpus connects to the document corpus, migrating it first when
// configured. It returns nil without error when no database is configured.
func OpenCorpus(ctx context.Context, cfg config.PostgresConfig) (*pgxstore.PaperDBStorage, error) {
	if cfg.URL == "" {
		logger.Info("[Corpus] No DATABASE_URL configured, document corpus disabled")
		return nil, nil
	}
	if cfg.Migrate {
		if err := pgxstore.Migrate(cfg.URL); err != nil {
			return nil, err
		}
	}
	return pgxstore.NewPaperDBStorage(ctx, cfg.URL)
}

// Services are the long-lived domain services of a process.
type Services struct {
	Config        config.Config
	AIClient      ai.GraphAIClient
	Graph         store.GraphStorage
	Papers        *pgxstore.PaperDBStorage
	GraphClient   *graph.GraphClient
	Evidence      *evidence.Service
	RAG           *rag.Orchestrator
	Conversations *rag.Conversations
}

// New connects to every configured backend and builds the services.
func New(ctx context.Context, cfg config.Config) (*Services, error) {
	aiClient, err := NewAIClient(cfg.AI)
	if err != nil {
		return nil, err
	}

	graphStore, err := OpenGraph(ctx, cfg.Neo4j, cfg.Pipeline.BatchSize)
	if err != nil {
		return nil, err
	}

	papers, err := OpenCorpus(ctx, cfg.Postgres)
	if err != nil {
		_ = graphStore.Close(ctx)
		return nil, err
	}

	graphClient, err := NewGraphClient(cfg, aiClient)
	if err != nil {
		_ = graphStore.Close(ctx)
		if papers != nil {
			papers.Close()
		}
		return nil, err
	}

	return NewServices(cfg, aiClient, graphStore, papers, graphClient), nil
}

// NewServices assembles Services from already opened backends. papers may
// be nil.
func NewServices(
	cfg config.Config,
	aiClient ai.GraphAIClient,
	graphStore store.GraphStorage,
	papers *pgxstore.PaperDBStorage,
	graphClient *graph.GraphClient,
) *Services {
	orchestrator := rag.NewOrchestrator(rag.NewOrchestratorParams{
		Graph:         graphStore,
		AIClient:      aiClient,
		ContextTokens: cfg.RAG.ContextTokens,
		LLMTimeout:    cfg.RAG.LLMTimeout,
		LLMAttempts:   cfg.RAG.LLMAttempts,
		AIOptions:     generateOptions(cfg.AI),
	})

	return &Services{
		Config:      cfg,
		AIClient:    aiClient,
		Graph:       graphStore,
		Papers:      papers,
		GraphClient: graphClient,
		Evidence: evidence.NewService(evidence.NewServiceParams{
			Graph: graphStore,
			Thresholds: evidence.Thresholds{
				High:   cfg.Evidence.High,
				Medium: cfg.Evidence.Medium,
				Low:    cfg.Evidence.Low,
			},
		}),
		RAG:           orchestrator,
		Conversations: rag.NewConversations(orchestrator, rag.NewSessionStore(cfg.RAG.SessionMax, cfg.RAG.SessionTTL)),
	}
}

// Corpus returns the document corpus, or a nil interface when it is
// disabled.
func (s *Services) Corpus() store.PaperStorage {
	if s.Papers == nil {
		return nil
	}
	return s.Papers
}

// Jobs returns the ingest job store, or a nil interface when the corpus
// database is disabled.
func (s *Services) Jobs() store.JobStorage {
	if s.Papers == nil {
		return nil
	}
	return s.Papers
}

func (s *Services) Close(ctx context.Context) {
	if s.Papers != nil {
		s.Papers.Close()
	}
	if err := s.Graph.Close(ctx); err != nil {
		logger.Error("[Graph] Failed to close Neo4j driver", "err", err)
	}
}
