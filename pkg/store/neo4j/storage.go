// Package neo4j implements store.GraphStorage on a Neo4j database.
package neo4j

import (
	"context"
	"fmt"

	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Runner executes one Cypher statement and buffers its result.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any, read bool) (*neo4jv5.EagerResult, error)
}

type executor struct {
	driver   neo4jv5.DriverWithContext
	database string
}

func (e *executor) Run(ctx context.Context, query string, params map[string]any, read bool) (*neo4jv5.EagerResult, error) {
	opts := []neo4jv5.ExecuteQueryConfigurationOption{neo4jv5.ExecuteQueryWithDatabase(e.database)}
	if read {
		opts = append(opts, neo4jv5.ExecuteQueryWithReadersRouting())
	}
	return neo4jv5.ExecuteQuery(ctx, e.driver, query, params, neo4jv5.EagerResultTransformer, opts...)
}

// GraphStorage is the Neo4j knowledge graph. Entity nodes carry the Entity
// label plus their type label; papers carry Paper. Both are keyed by the
// natural id property "id".
type GraphStorage struct {
	runner    Runner
	driver    neo4jv5.DriverWithContext
	batchSize int
}

type NewGraphStorageParams struct {
	URI       string
	User      string
	Password  string
	Database  string
	BatchSize int
}

// NewGraphStorage connects to Neo4j and verifies connectivity.
func NewGraphStorage(ctx context.Context, params NewGraphStorageParams) (*GraphStorage, error) {
	driver, err := neo4jv5.NewDriverWithContext(params.URI, neo4jv5.BasicAuth(params.User, params.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, unavailable("verify connectivity", err)
	}

	logger.Info("[Graph] Connected to Neo4j", "uri", params.URI, "database", params.Database)

	s := NewGraphStorageWithRunner(&executor{driver: driver, database: params.Database}, params.BatchSize)
	s.driver = driver
	return s, nil
}

// NewGraphStorageWithRunner builds a GraphStorage on an existing runner.
func NewGraphStorageWithRunner(runner Runner, batchSize int) *GraphStorage {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &GraphStorage{runner: runner, batchSize: batchSize}
}

func (s *GraphStorage) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

func (s *GraphStorage) read(ctx context.Context, op, query string, params map[string]any) ([]*neo4jv5.Record, error) {
	res, err := s.runner.Run(ctx, query, params, true)
	if err != nil {
		return nil, unavailable(op, err)
	}
	return res.Records, nil
}

func (s *GraphStorage) write(ctx context.Context, op, query string, params map[string]any) error {
	if _, err := s.runner.Run(ctx, query, params, false); err != nil {
		return unavailable(op, err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", store.ErrUnavailable, op, err)
}

var _ store.GraphStorage = (*GraphStorage)(nil)
