package chunkextract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_ParseGoFile_ReturnsAST(t *testing.T) {
	// Given: valid Go source with two functions
	source := []byte(`package main

func hello() {
	println("hello")
}

func goodbye() {
	println("bye")
}
`)

	// When: parsing with the go grammar
	parser := NewParser()
	defer parser.Close()

	tree, err := parser.Parse(context.Background(), source, "go")

	// Then: the AST contains two function_declaration nodes
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Equal(t, "go", tree.Language)
	assert.Len(t, tree.Root.FindAllByType("function_declaration"), 2)
}

func TestParser_ParseTypeScriptFile_ReturnsAST(t *testing.T) {
	// Given: TypeScript source with an interface and a function
	source := []byte(`interface User {
	name: string;
}

function greet(u: User): string {
	return u.name;
}
`)

	parser := NewParser()
	defer parser.Close()

	// When: parsing with the typescript grammar
	tree, err := parser.Parse(context.Background(), source, "typescript")

	// Then: both declarations are present in the AST
	require.NoError(t, err)
	assert.Len(t, tree.Root.FindAllByType("interface_declaration"), 1)
	assert.Len(t, tree.Root.FindAllByType("function_declaration"), 1)
}

func TestParser_Parse_UnsupportedLanguage_ReturnsError(t *testing.T) {
	parser := NewParser()
	defer parser.Close()

	_, err := parser.Parse(context.Background(), []byte("x"), "cobol")
	assert.Error(t, err)
}

func TestParser_DetectLanguage_ByExtension(t *testing.T) {
	parser := NewParser()
	defer parser.Close()

	lang, ok := parser.DetectLanguage(".tsx")
	require.True(t, ok)
	assert.Equal(t, "tsx", lang)

	_, ok = parser.DetectLanguage(".exe")
	assert.False(t, ok)
}

func TestNode_GetContent_OutOfRangeReturnsEmpty(t *testing.T) {
	n := &Node{StartByte: 10, EndByte: 5}
	assert.Equal(t, "", n.GetContent([]byte("short")))
}

func TestNode_Walk_StopsDescentWhenFnReturnsFalse(t *testing.T) {
	// Given: a tree with one level of nesting
	leaf := &Node{Type: "leaf"}
	root := &Node{Type: "root", Children: []*Node{leaf}}

	// When: fn returns false for root
	var visited []string
	root.Walk(func(n *Node) bool {
		visited = append(visited, n.Type)
		return false
	})

	// Then: leaf is never visited
	assert.Equal(t, []string{"root"}, visited)
}
