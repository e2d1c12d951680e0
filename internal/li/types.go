// Package li implements the lexical index set (LI): three Bleve full
// text indices — symbols, snippets, and files — that back BM25 keyword
// search and provide the textual half of hybrid retrieval.
package li

import "context"

// SchemaStatus reports whether an LI root is usable as-is.
type SchemaStatus string

const (
	StatusCompatible       SchemaStatus = "compatible"
	StatusNotIndexed       SchemaStatus = "not_indexed"
	StatusReindexRequired  SchemaStatus = "reindex_required"
	StatusCorruptManifest  SchemaStatus = "corrupt_manifest"
)

// SymbolDoc is the lexical-search projection of an rs.SymbolRecord.
type SymbolDoc struct {
	SymbolID      string
	ProjectID     string
	Ref           string
	Path          string
	Kind          string
	QualifiedName string
	Name          string
	Signature     string
	Language      string
}

// SnippetDoc is a body-text document keyed by symbol_id: the extracted
// source text of a symbol, used for full-text search over bodies
// rather than identifiers.
type SnippetDoc struct {
	SymbolID  string
	ProjectID string
	Ref       string
	Path      string
	Content   string
	Language  string
	LineStart int
	LineEnd   int
}

// FileDoc indexes whole-file content heads, used for file-level
// keyword queries that don't resolve to a specific symbol.
type FileDoc struct {
	ProjectID   string
	Ref         string
	Path        string
	Language    string
	ContentHead string
}

// Hit is a single scored match from any of the three indices.
type Hit struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// Index is the common shape of the three underlying Bleve wrappers.
type Index interface {
	IndexSymbols(ctx context.Context, docs []*SymbolDoc) error
	IndexSnippets(ctx context.Context, docs []*SnippetDoc) error
	IndexFiles(ctx context.Context, docs []*FileDoc) error
	SearchSymbols(ctx context.Context, query string, limit int) ([]*Hit, error)
	SearchSnippets(ctx context.Context, query string, limit int) ([]*Hit, error)
	SearchFiles(ctx context.Context, query string, limit int) ([]*Hit, error)
	DeleteByPath(ctx context.Context, projectID, ref, path string) error
	Close() error
}
