package li

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_IndexAndSearchSymbols_CamelCase(t *testing.T) {
	// Given: an in-memory LI set with one symbol doc
	set, err := Open("")
	require.NoError(t, err)
	defer func() { _ = set.Close() }()

	require.NoError(t, set.IndexSymbols(context.Background(), []*SymbolDoc{
		{SymbolID: "s1", ProjectID: "p1", Ref: "main", Path: "a.go", Kind: "function", QualifiedName: "pkg.getUserById", Name: "getUserById"},
	}))

	// When: searching for a partial camelCase term
	hits, err := set.SearchSymbols(context.Background(), "user", 10)
	require.NoError(t, err)

	// Then: the symbol is found
	require.Len(t, hits, 1)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestSet_IndexAndSearchSnippets(t *testing.T) {
	set, err := Open("")
	require.NoError(t, err)
	defer func() { _ = set.Close() }()

	require.NoError(t, set.IndexSnippets(context.Background(), []*SnippetDoc{
		{SymbolID: "s1", ProjectID: "p1", Ref: "main", Path: "a.go", Content: "func handleRequest(w http.ResponseWriter) {}", LineStart: 1, LineEnd: 1},
	}))

	hits, err := set.SearchSnippets(context.Background(), "handleRequest", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestSet_DeleteByPath_RemovesSymbolsAndSnippets(t *testing.T) {
	// Given: a symbol and snippet indexed for a.go
	set, err := Open("")
	require.NoError(t, err)
	defer func() { _ = set.Close() }()

	require.NoError(t, set.IndexSymbols(context.Background(), []*SymbolDoc{
		{SymbolID: "s1", ProjectID: "p1", Ref: "main", Path: "a.go", Name: "Foo"},
	}))
	require.NoError(t, set.IndexSnippets(context.Background(), []*SnippetDoc{
		{SymbolID: "s1", ProjectID: "p1", Ref: "main", Path: "a.go", Content: "func Foo() {}"},
	}))
	require.NoError(t, set.IndexFiles(context.Background(), []*FileDoc{
		{ProjectID: "p1", Ref: "main", Path: "a.go", ContentHead: "package main"},
	}))

	// When: the file is deleted
	require.NoError(t, set.DeleteByPath(context.Background(), "p1", "main", "a.go"))

	// Then: no symbol/snippet/file doc for that path remains
	symHits, err := set.SearchSymbols(context.Background(), "Foo", 10)
	require.NoError(t, err)
	assert.Empty(t, symHits)
	fileHits, err := set.SearchFiles(context.Background(), "package", 10)
	require.NoError(t, err)
	assert.Empty(t, fileHits)
}

func TestStatus_NotIndexedForEmptyRoot(t *testing.T) {
	assert.Equal(t, StatusNotIndexed, Status(""))
}

func TestTokenizeCode_SplitsCamelAndSnakeCase(t *testing.T) {
	assert.Equal(t, []string{"get", "user", "by", "id"}, TokenizeCode("getUserById"))
	assert.Equal(t, []string{"get", "user", "by", "id"}, TokenizeCode("get_user_by_id"))
}
