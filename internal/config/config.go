package config

import (
	"fmt"
	"time"

	"github.com/NimaFathima/astrobiomers/internal/util"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Debug   bool   `mapstructure:"debug"`
	LogFile string `mapstructure:"log_file"`
	APIKey  string `mapstructure:"api_key"`
	AuthURL string `mapstructure:"auth_url"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type PostgresConfig struct {
	URL     string `mapstructure:"url"`
	Migrate bool   `mapstructure:"migrate"`
}

// AIConfig selects the LLM adapter. An empty Adapter disables every LLM
// feature and the system runs on deterministic fallbacks.
type AIConfig struct {
	Adapter       string        `mapstructure:"adapter"`
	ChatURL       string        `mapstructure:"chat_url"`
	ChatKey       string        `mapstructure:"chat_key"`
	ChatModel     string        `mapstructure:"chat_model"`
	ExtractModel  string        `mapstructure:"extract_model"`
	Thinking      string        `mapstructure:"thinking"`
	EmbedURL      string        `mapstructure:"embed_url"`
	EmbedKey      string        `mapstructure:"embed_key"`
	EmbedModel    string        `mapstructure:"embed_model"`
	EmbedDim      int           `mapstructure:"embed_dim"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
}

type NERConfig struct {
	Backends  []string      `mapstructure:"backends"`
	Threshold float64       `mapstructure:"threshold"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type RelationConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// AggregateConfig holds the confidence fusion parameters. They are not
// calibrated against data; treat them as tuning knobs.
type AggregateConfig struct {
	PerDocumentBoost float64 `mapstructure:"per_document_boost"`
	MaxBoost         float64 `mapstructure:"max_boost"`
	Cap              float64 `mapstructure:"cap"`
}

type EvidenceConfig struct {
	High   int `mapstructure:"high"`
	Medium int `mapstructure:"medium"`
	Low    int `mapstructure:"low"`
}

type RAGConfig struct {
	MaxPapers     int           `mapstructure:"max_papers"`
	LLMTimeout    time.Duration `mapstructure:"llm_timeout"`
	LLMAttempts   int           `mapstructure:"llm_attempts"`
	ContextTokens int           `mapstructure:"context_tokens"`
	SessionMax    int           `mapstructure:"session_max"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

type PipelineConfig struct {
	BatchSize int `mapstructure:"batch_size"`
	Workers   int `mapstructure:"workers"`
}

type QueueConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
}

// Config is the full runtime configuration shared by the server, the worker
// and the pipeline CLI.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Neo4j     Neo4jConfig     `mapstructure:"neo4j"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	AI        AIConfig        `mapstructure:"ai"`
	NER       NERConfig       `mapstructure:"ner"`
	Relation  RelationConfig  `mapstructure:"relation"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Evidence  EvidenceConfig  `mapstructure:"evidence"`
	RAG       RAGConfig       `mapstructure:"rag"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Queue     QueueConfig     `mapstructure:"queue"`
	S3        S3Config        `mapstructure:"s3"`
}

// FromEnv builds a Config from environment variables, falling back to
// defaults for anything unset.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Port:    util.GetEnvString("PORT", "8080"),
			Debug:   util.GetEnvBool("DEBUG", false),
			LogFile: util.GetEnv("LOG_FILE"),
			APIKey:  util.GetEnv("API_KEY"),
			AuthURL: util.GetEnv("AUTH_URL"),
		},
		Neo4j: Neo4jConfig{
			URI:      util.GetEnvString("NEO4J_URI", "bolt://localhost:7687"),
			User:     util.GetEnvString("NEO4J_USER", "neo4j"),
			Password: util.GetEnv("NEO4J_PASSWORD"),
			Database: util.GetEnvString("NEO4J_DATABASE", "astrobiomers"),
		},
		Postgres: PostgresConfig{
			URL:     util.GetEnv("DATABASE_URL"),
			Migrate: util.GetEnvBool("DATABASE_MIGRATE", true),
		},
		AI: AIConfig{
			Adapter:       util.GetEnv("AI_ADAPTER"),
			ChatURL:       util.GetEnv("AI_CHAT_URL"),
			ChatKey:       util.GetEnv("AI_CHAT_KEY"),
			ChatModel:     util.GetEnvString("AI_CHAT_MODEL", "gpt-4o-mini"),
			ExtractModel:  util.GetEnvString("AI_EXTRACT_MODEL", "gpt-4o-mini"),
			Thinking:      util.GetEnv("AI_THINKING"),
			EmbedURL:      util.GetEnv("AI_EMBED_URL"),
			EmbedKey:      util.GetEnv("AI_EMBED_KEY"),
			EmbedModel:    util.GetEnvString("AI_EMBED_MODEL", "text-embedding-3-small"),
			EmbedDim:      util.GetEnvInt("AI_EMBED_DIM", 1536),
			Timeout:       util.GetEnvDuration("AI_TIMEOUT", 2*time.Minute),
			MaxConcurrent: util.GetEnvInt("AI_PARALLEL_REQ", 8),
		},
		NER: NERConfig{
			Backends:  util.GetEnvList("NER_BACKENDS", []string{"pattern"}),
			Threshold: util.GetEnvFloat("NER_THRESHOLD", 0.75),
			CacheSize: util.GetEnvInt("NER_CACHE_SIZE", 1024),
			CacheTTL:  util.GetEnvDuration("NER_CACHE_TTL", time.Hour),
		},
		Relation: RelationConfig{
			ConfidenceThreshold: util.GetEnvFloat("RELATION_CONFIDENCE_THRESHOLD", 0.70),
		},
		Aggregate: AggregateConfig{
			PerDocumentBoost: util.GetEnvFloat("AGG_PER_DOC_BOOST", 0.02),
			MaxBoost:         util.GetEnvFloat("AGG_MAX_BOOST", 0.2),
			Cap:              util.GetEnvFloat("AGG_CAP", 0.99),
		},
		Evidence: EvidenceConfig{
			High:   util.GetEnvInt("EVIDENCE_HIGH", 5),
			Medium: util.GetEnvInt("EVIDENCE_MEDIUM", 3),
			Low:    util.GetEnvInt("EVIDENCE_LOW", 1),
		},
		RAG: RAGConfig{
			MaxPapers:     util.GetEnvInt("RAG_MAX_PAPERS", 10),
			LLMTimeout:    util.GetEnvDuration("LLM_TIMEOUT", 30*time.Second),
			LLMAttempts:   util.GetEnvInt("LLM_ATTEMPTS", 2),
			ContextTokens: util.GetEnvInt("RAG_CONTEXT_TOKENS", 3000),
			SessionMax:    util.GetEnvInt("SESSION_MAX", 1000),
			SessionTTL:    util.GetEnvDuration("SESSION_TTL", 24*time.Hour),
		},
		Pipeline: PipelineConfig{
			BatchSize: util.GetEnvInt("PIPELINE_BATCH_SIZE", 100),
			Workers:   util.GetEnvInt("PIPELINE_WORKERS", 4),
		},
		Queue: QueueConfig{
			User:     util.GetEnvString("RABBITMQ_USER", "guest"),
			Password: util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
			Host:     util.GetEnvString("RABBITMQ_HOST", "localhost"),
			Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
		},
		S3: S3Config{
			Region:    util.GetEnv("AWS_REGION"),
			Endpoint:  util.GetEnv("AWS_ENDPOINT"),
			AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey: util.GetEnv("AWS_SECRET_KEY"),
			Bucket:    util.GetEnv("AWS_BUCKET"),
		},
	}
}

// Load reads the .env file and the environment, then applies the YAML file
// at path on top when path is not empty. Keys absent from the file keep
// their environment or default value.
func Load(path string) (Config, error) {
	util.LoadEnv()
	cfg := FromEnv()

	if path == "" {
		path = util.GetEnv("CONFIG_FILE")
	}
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations that would break the confidence
// invariants.
func (c Config) Validate() error {
	if c.NER.Threshold < 0 || c.NER.Threshold > 1 {
		return fmt.Errorf("ner.threshold must be in [0,1], got %v", c.NER.Threshold)
	}
	if c.Aggregate.Cap <= 0 || c.Aggregate.Cap > 1 {
		return fmt.Errorf("aggregate.cap must be in (0,1], got %v", c.Aggregate.Cap)
	}
	if c.Aggregate.PerDocumentBoost < 0 || c.Aggregate.MaxBoost < 0 {
		return fmt.Errorf("aggregate boosts must not be negative")
	}
	if !(c.Evidence.High >= c.Evidence.Medium && c.Evidence.Medium >= c.Evidence.Low && c.Evidence.Low >= 1) {
		return fmt.Errorf("evidence thresholds must satisfy high >= medium >= low >= 1")
	}
	return nil
}
