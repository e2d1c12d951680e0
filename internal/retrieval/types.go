// Package retrieval implements the seven query tools:
// locate_symbol, search_code, find_references, diff_context,
// get_code_context, build_context_pack, and explain_ranking. It owns
// BM25 scoring boosts, the hybrid lexical/semantic blend, the local
// rule-based rerank fallback, overlay-aware reads, and the query-intent
// classifier.
package retrieval

import (
	"context"

	"github.com/signalridge/codecompass/internal/protocol"
)

// SourceLayer tags which index a row was read from, set only when the
// query ref differs from the project default.
type SourceLayer string

const (
	LayerBase    SourceLayer = "base"
	LayerOverlay SourceLayer = "overlay"
)

// RowKind distinguishes the three lexical indices a row may originate
// from.
type RowKind string

const (
	RowSymbol  RowKind = "symbol"
	RowSnippet RowKind = "snippet"
	RowFile    RowKind = "file"
)

// Row is the common shape every query tool ranks, filters, and emits.
// It is deliberately flat so the policy layer's Candidate view and the
// JSON tool payload can both be built from it directly.
type Row struct {
	ID            string // stable row key: symbol_id, or path for file rows
	Kind          RowKind
	SymbolKind    string // function/method/struct/... empty for file rows
	Path          string
	QualifiedName string
	Name          string
	Signature     string
	Language      string
	LineStart     int
	LineEnd       int
	Content       string // snippet body or file content head

	Score        float64
	BM25Score    float64
	VecScore     float64
	InBoth       bool
	MatchedTerms []string
	BoostReasons []string

	SourceLayer SourceLayer

	// mergeKey identifies "the same" row across base and overlay reads,
	// independent of the ref-scoped ID (symbol_stable_id for
	// symbol/snippet rows, path for file rows). Never serialized.
	mergeKey string
}

// QueryIntent is the closed classification a query is sorted into.
type QueryIntent string

const (
	IntentSymbol    QueryIntent = "symbol"
	IntentPath      QueryIntent = "path"
	IntentError     QueryIntent = "error"
	IntentNatural   QueryIntent = "natural_language"
)

// Config carries the retrieval tunables: the hybrid
// semantic blend ratio, the lexical short-circuit threshold, and the
// default explain level.
type Config struct {
	SemanticMode                 protocol.SemanticMode
	SemanticRatio                float64 // convex-combination weight for the vector branch
	LexicalShortCircuitThreshold float64 // skip the vector branch when lexical top score exceeds this
	EmbeddingModelVersion        string
	DefaultFreshnessPolicy       protocol.FreshnessPolicy // used when a request omits freshness_policy
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SemanticMode:                 protocol.SemanticHybrid,
		SemanticRatio:                0.5,
		LexicalShortCircuitThreshold: 0.92,
		DefaultFreshnessPolicy:       protocol.FreshnessBestEffort,
	}
}

// Embedder embeds a batch of query strings. Structurally identical to
// internal/pipeline.Embedder so any embedder wired for indexing also
// satisfies query-time embedding without a package dependency between
// the two.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (vectors [][]float32, modelVersion string, err error)
}
