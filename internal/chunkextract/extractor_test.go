package chunkextract

import (
	"context"
	"testing"

	"github.com/signalridge/codecompass/internal/rs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseGo(t *testing.T, source string) *Tree {
	t.Helper()
	parser := NewParser()
	defer parser.Close()
	tree, err := parser.Parse(context.Background(), []byte(source), "go")
	require.NoError(t, err)
	return tree
}

func TestExtractor_ExtractSymbols_FunctionsAndMethods(t *testing.T) {
	// Given: a file with a function and a pointer-receiver method
	tree := parseGo(t, `package main

func Add(a, b int) int {
	return a + b
}

type Server struct{}

func (s *Server) Close() error {
	return nil
}
`)

	// When: extracting symbols
	ex := NewExtractor()
	symbols := ex.ExtractSymbols(tree, "proj1", "main", "a.go")

	// Then: both the function and the method are found, and the method's
	// qualified name includes its receiver type
	require.Len(t, symbols, 3) // Add, Server (type_declaration), Close
	names := map[string]*rs.SymbolRecord{}
	for _, s := range symbols {
		names[s.Name] = s
	}
	add := names["Add"]
	closeMethod := names["Close"]
	require.NotNil(t, add)
	require.NotNil(t, closeMethod)
	assert.Equal(t, "Add", add.QualifiedName)
	assert.Equal(t, "Server.Close", closeMethod.QualifiedName)
	assert.Equal(t, "method", closeMethod.Kind)
	assert.Equal(t, "function", add.Kind)
}

func TestExtractor_ExtractSymbols_StableIDIsLineIndependent(t *testing.T) {
	// Given: the same function at different lines in two files
	treeA := parseGo(t, "package main\n\nfunc Foo() {}\n")
	treeB := parseGo(t, "package main\n\n\n\nfunc Foo() {}\n")

	ex := NewExtractor()
	symsA := ex.ExtractSymbols(treeA, "proj1", "main", "a.go")
	symsB := ex.ExtractSymbols(treeB, "proj1", "main", "a.go")

	require.Len(t, symsA, 1)
	require.Len(t, symsB, 1)

	// Then: symbol_stable_id matches even though symbol_id differs
	assert.Equal(t, symsA[0].SymbolStableID, symsB[0].SymbolStableID)
	assert.NotEqual(t, symsA[0].SymbolID, symsB[0].SymbolID)
}

func TestExtractor_ExtractCallEdges_UnresolvedByName(t *testing.T) {
	// Given: a function that calls another function
	tree := parseGo(t, `package main

func Helper() int {
	return 1
}

func Main() {
	Helper()
}
`)

	ex := NewExtractor()
	symbols := ex.ExtractSymbols(tree, "proj1", "main", "a.go")

	// When: extracting call edges
	edges := ex.ExtractCallEdges(tree, "proj1", "main", "a.go", symbols)

	// Then: an unresolved "calls" edge targets "Helper" by name
	require.Len(t, edges, 1)
	assert.Equal(t, "calls", edges[0].EdgeType)
	assert.Equal(t, "Helper", edges[0].ToName)
	assert.Equal(t, "unresolved", edges[0].Outcome)
	assert.Empty(t, edges[0].ToSymbolID)
}

func TestExtractor_ExtractImportEdges_Go(t *testing.T) {
	// Given: a file importing a standard library package
	tree := parseGo(t, `package main

import "fmt"

func Main() {
	fmt.Println("hi")
}
`)

	ex := NewExtractor()

	// When: extracting import edges, attributed to a synthetic file symbol
	edges := ex.ExtractImportEdges(tree, "proj1", "main", "a.go", "file-symbol-id")

	// Then: one "imports" edge targets "fmt"
	require.Len(t, edges, 1)
	assert.Equal(t, "imports", edges[0].EdgeType)
	assert.Equal(t, "fmt", edges[0].ToName)
	assert.Equal(t, "file-symbol-id", edges[0].FromSymbolID)
}

func TestExtractor_ExtractSymbols_EmptyTree_ReturnsEmptySlice(t *testing.T) {
	ex := NewExtractor()
	symbols := ex.ExtractSymbols(&Tree{}, "proj1", "main", "a.go")
	assert.Empty(t, symbols)
	assert.NotNil(t, symbols)
}
