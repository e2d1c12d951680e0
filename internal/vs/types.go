// Package vs implements the vector store (VS): per-(project, ref,
// embedding_model_version) partitions of symbol/snippet embeddings,
// searched by brute-force cosine similarity with an optional HNSW
// pre-filter, persisted in the shared RS SQLite database.
package vs

import "context"

// Backend selects the storage/search strategy for a VS partition.
type Backend string

const (
	BackendSQLite  Backend = "sqlite"
	BackendLanceDB Backend = "lancedb" // declared, not compiled in; falls back to sqlite
)

// Vector is a single stored embedding row.
type Vector struct {
	ProjectID             string
	Ref                   string
	SymbolStableID        string
	SnippetHash           string
	EmbeddingModelVersion string
	Values                []float32
	ContentHash           string
	LineStart             int
	LineEnd               int
	Language              string
	Path                  string
}

// Result is a single scored nearest-neighbor match.
type Result struct {
	SymbolStableID string
	SnippetHash    string
	Score          float64 // cosine similarity, higher is better
	Path           string
	LineStart      int
	LineEnd        int
}

// PartitionKey identifies one brute-force working set.
type PartitionKey struct {
	ProjectID             string
	Ref                   string
	EmbeddingModelVersion string
}

// Store is the vector-store interface the retrieval engine depends
// on. SQLiteStore is the only backend compiled in; a declared-only
// LanceDB adapter (lancedb.go) satisfies the same interface and
// always reports itself unavailable.
type Store interface {
	Upsert(ctx context.Context, vectors []*Vector) error
	DeleteByPath(ctx context.Context, projectID, ref, path string) error
	DeleteBySymbol(ctx context.Context, projectID, ref, symbolStableID string) error
	Search(ctx context.Context, key PartitionKey, query []float32, k int) ([]*Result, error)
	Backend() Backend
	Available() bool
	Close() error
	WarmPartitions() int
}
