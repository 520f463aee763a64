package core

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/index"
)

// SQLiteStore implements ArtifactStore using SQLite as the backing engine.
// It is the default IMemoryStorage + short-vector IVectorIndex adapter: one
// physical database file per deployment, tenant isolation enforced at the
// query layer rather than via separate files.
type SQLiteStore struct {
	db             *sql.DB
	config         Config
	mu             sync.RWMutex
	closed         bool
	similarityFn   SimilarityFunc
	logger         Logger
	hnswIndex      *index.HNSW      // short-vector ANN index
	ivfIndex       *index.IVFIndex  // partitioned ANN index, alternative to HNSW
	quantizer      index.Quantizer  // long-vector compression codec
	adapter        *DimensionAdapter
	textSimilarity TextSimilarity
}

// New creates a new SQLite-backed artifact store at path, auto-detecting
// vector dimension on first write when vectorDim is 0.
func New(path string, vectorDim int) (*SQLiteStore, error) {
	config := DefaultConfig()
	config.Path = path
	config.VectorDim = vectorDim

	return NewWithConfig(config)
}

// NewWithConfig creates a new SQLite-backed artifact store with custom configuration.
func NewWithConfig(config Config) (*SQLiteStore, error) {
	if config.Path == "" {
		return nil, wrapError("init", fmt.Errorf("database path cannot be empty"))
	}

	if config.VectorDim < 0 {
		return nil, wrapError("init", fmt.Errorf("vector dimension must be non-negative"))
	}

	if config.SimilarityFn == nil {
		config.SimilarityFn = CosineSimilarity
	}

	logger := config.Logger
	if logger == nil {
		logger = NopLogger()
	}

	store := &SQLiteStore{
		config:       config,
		similarityFn: config.SimilarityFn,
		logger:       logger,
		adapter:      NewDimensionAdapter(config.AutoDimAdapt),
	}

	return store, nil
}

// GetDB exposes the underlying connection pool for callers (e.g. pkg/graph,
// pkg/worker) that need to share a transaction with the artifact store.
func (s *SQLiteStore) GetDB() *sql.DB {
	return s.db
}

// GetSimilarityFunc returns the similarity function the store was configured with.
func (s *SQLiteStore) GetSimilarityFunc() SimilarityFunc {
	return s.similarityFn
}
