package pipeline

import "context"

// Embedder is the black-box batch-embedding interface the indexing
// pipeline writes through into the vector store. A nil Embedder simply skips the VS
// write stage — BM25-only indexing remains fully functional since the
// vector store is an optional enrichment, not a hard dependency.
type Embedder interface {
	// EmbedBatch returns one vector per input text, plus the model
	// version string the vector store partitions by.
	EmbedBatch(ctx context.Context, texts []string) (vectors [][]float32, modelVersion string, err error)
}
