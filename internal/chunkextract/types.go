// Package chunkextract wraps tree-sitter to parse source files into an
// AST and extract symbols, call/import edges, and retrievable snippet
// text from them. Tree-sitter is
// treated as an opaque parser boundary: callers work only with Tree,
// Node, and LanguageConfig, never with the underlying sitter types.
package chunkextract

// Point is a zero-indexed row/column position in the source.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a parsed AST node, detached from the tree-sitter C bindings
// so downstream code never imports them directly.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Tree is a parsed file.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// GetContent returns the source text spanned by n.
func (n *Node) GetContent(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FindChildByType returns the first direct child with the given type.
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// FindAllByType recursively collects every node (including n) matching
// nodeType.
func (n *Node) FindAllByType(nodeType string) []*Node {
	var out []*Node
	if n.Type == nodeType {
		out = append(out, n)
	}
	for _, c := range n.Children {
		out = append(out, c.FindAllByType(nodeType)...)
	}
	return out
}

// Walk traverses the tree depth-first, calling fn for every node. fn
// returning false stops descent into that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// LanguageConfig maps tree-sitter node type names to the symbol kinds
// and call/import node types a language uses, so the extractor stays
// language-agnostic.
type LanguageConfig struct {
	Name       string
	Extensions []string

	FunctionTypes  []string
	MethodTypes    []string
	ClassTypes     []string
	InterfaceTypes []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string

	CallExpressionTypes []string
	ImportTypes         []string

	NameField string
}
