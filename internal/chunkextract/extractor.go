package chunkextract

import (
	"strings"

	"github.com/signalridge/codecompass/internal/ids"
	"github.com/signalridge/codecompass/internal/rs"
)

// Extractor walks a parsed Tree to produce the symbol and edge records
// RS stores, plus retrievable snippet text. Unlike
// the reference extractor, which only builds lightweight Symbol values
// for chunking, this one also resolves (or defers resolution of) the
// call and import edges the graph-aware retrieval tools need.
type Extractor struct {
	registry *LanguageRegistry
}

// NewExtractor creates an extractor bound to the default registry.
func NewExtractor() *Extractor {
	return &Extractor{registry: DefaultRegistry()}
}

// NewExtractorWithRegistry creates an extractor bound to a custom registry.
func NewExtractorWithRegistry(registry *LanguageRegistry) *Extractor {
	return &Extractor{registry: registry}
}

// ExtractSymbols walks tree and returns one SymbolRecord per recognized
// declaration node, with ids-derived SymbolID/SymbolStableID already
// populated.
func (e *Extractor) ExtractSymbols(tree *Tree, projectID, ref, path string) []*rs.SymbolRecord {
	if tree == nil || tree.Root == nil {
		return []*rs.SymbolRecord{}
	}
	config, ok := e.registry.GetByName(tree.Language)
	if !ok {
		return []*rs.SymbolRecord{}
	}

	var out []*rs.SymbolRecord
	var walk func(n *Node, parentSymbolID string)
	walk = func(n *Node, parentSymbolID string) {
		kind, found := symbolKindForNode(n.Type, config)
		nextParent := parentSymbolID
		if found {
			name := e.extractName(n, tree.Source, config, tree.Language)
			if name != "" {
				rec := e.buildSymbolRecord(n, tree, config, projectID, ref, path, kind, name, parentSymbolID)
				out = append(out, rec)
				nextParent = rec.SymbolID
			}
		}
		for _, c := range n.Children {
			walk(c, nextParent)
		}
	}
	walk(tree.Root, "")
	return out
}

func (e *Extractor) buildSymbolRecord(n *Node, tree *Tree, config *LanguageConfig, projectID, ref, path string, kind ids.SymbolKind, name, parentSymbolID string) *rs.SymbolRecord {
	lineStart := int(n.StartPoint.Row) + 1
	lineEnd := int(n.EndPoint.Row) + 1
	signature := e.extractSignature(n, tree.Source, kind, tree.Language)
	qualifiedName := e.extractQualifiedName(n, tree.Source, config, tree.Language, name)

	symbolID := ids.SymbolID(projectID, ref, path, kind, lineStart, name)
	stableID := ids.SymbolStableID(tree.Language, kind, qualifiedName, signature)
	contentHash := ids.ContentHash([]byte(n.GetContent(tree.Source)))

	return &rs.SymbolRecord{
		SymbolID:       symbolID,
		SymbolStableID: stableID,
		ProjectID:      projectID,
		Ref:            ref,
		Path:           path,
		Kind:           string(kind),
		QualifiedName:  qualifiedName,
		Name:           name,
		Signature:      signature,
		LineStart:      lineStart,
		LineEnd:        lineEnd,
		ParentSymbolID: parentSymbolID,
		ContentHash:    contentHash,
		Language:       tree.Language,
	}
}

func symbolKindForNode(nodeType string, config *LanguageConfig) (ids.SymbolKind, bool) {
	switch {
	case containsType(config.FunctionTypes, nodeType):
		return ids.KindFunction, true
	case containsType(config.MethodTypes, nodeType):
		return ids.KindMethod, true
	case containsType(config.ClassTypes, nodeType):
		return ids.KindClass, true
	case containsType(config.InterfaceTypes, nodeType):
		return ids.KindInterface, true
	case containsType(config.TypeDefTypes, nodeType):
		return ids.KindTypeAlias, true
	case containsType(config.ConstantTypes, nodeType):
		return ids.KindConstant, true
	case containsType(config.VariableTypes, nodeType):
		return ids.KindVariable, true
	}
	return "", false
}

func containsType(types []string, t string) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func (e *Extractor) extractName(n *Node, source []byte, config *LanguageConfig, language string) string {
	switch language {
	case "go":
		return extractGoName(n, source)
	case "typescript", "tsx", "javascript", "jsx":
		return extractJSLikeName(n, source)
	case "python":
		return extractPythonName(n, source)
	default:
		for _, c := range n.Children {
			if c.Type == "identifier" {
				return c.GetContent(source)
			}
		}
	}
	return ""
}

func extractGoName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration":
		for _, c := range n.Children {
			if c.Type == "identifier" {
				return c.GetContent(source)
			}
		}
	case "method_declaration":
		for _, c := range n.Children {
			if c.Type == "field_identifier" {
				return c.GetContent(source)
			}
		}
	case "type_declaration":
		for _, c := range n.Children {
			if c.Type == "type_spec" {
				if id := c.FindChildByType("type_identifier"); id != nil {
					return id.GetContent(source)
				}
			}
		}
	case "const_declaration":
		for _, c := range n.Children {
			if c.Type == "const_spec" {
				if id := c.FindChildByType("identifier"); id != nil {
					return id.GetContent(source)
				}
			}
		}
	case "var_declaration":
		for _, c := range n.Children {
			if c.Type == "var_spec" {
				if id := c.FindChildByType("identifier"); id != nil {
					return id.GetContent(source)
				}
			}
		}
	}
	return ""
}

func extractJSLikeName(n *Node, source []byte) string {
	if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
		for _, c := range n.Children {
			if c.Type == "variable_declarator" {
				if id := c.FindChildByType("identifier"); id != nil {
					return id.GetContent(source)
				}
			}
		}
	}
	for _, c := range n.Children {
		if c.Type == "identifier" || c.Type == "type_identifier" || c.Type == "property_identifier" {
			return c.GetContent(source)
		}
	}
	return ""
}

func extractPythonName(n *Node, source []byte) string {
	for _, c := range n.Children {
		if c.Type == "identifier" {
			return c.GetContent(source)
		}
	}
	return ""
}

// extractQualifiedName prepends the receiver type for Go methods, since
// the bare field name collides across types (e.g. two Close() methods).
func (e *Extractor) extractQualifiedName(n *Node, source []byte, config *LanguageConfig, language, name string) string {
	if language == "go" && n.Type == "method_declaration" {
		if recv := goReceiverTypeName(n, source); recv != "" {
			return recv + "." + name
		}
	}
	return name
}

func goReceiverTypeName(n *Node, source []byte) string {
	var receiverList *Node
	for _, c := range n.Children {
		if c.Type == "parameter_list" {
			receiverList = c
			break
		}
	}
	if receiverList == nil {
		return ""
	}
	for _, decl := range receiverList.Children {
		if decl.Type != "parameter_declaration" {
			continue
		}
		for _, t := range decl.Children {
			switch t.Type {
			case "pointer_type":
				if id := t.FindChildByType("type_identifier"); id != nil {
					return id.GetContent(source)
				}
			case "type_identifier":
				return t.GetContent(source)
			}
		}
	}
	return ""
}

func (e *Extractor) extractSignature(n *Node, source []byte, kind ids.SymbolKind, language string) string {
	content := n.GetContent(source)
	if content == "" {
		return ""
	}
	switch kind {
	case ids.KindFunction, ids.KindMethod:
		return firstSignificantLine(content, language)
	case ids.KindClass, ids.KindInterface, ids.KindTypeAlias:
		return firstSignificantLine(content, language)
	}
	return ""
}

// firstSignificantLine returns the declaration header, truncated at the
// first opening brace or colon (Python) so embeddings see the interface
// without the body.
func firstSignificantLine(content, language string) string {
	cut := content
	if idx := strings.IndexByte(content, '{'); idx >= 0 {
		cut = content[:idx]
	}
	if language == "python" {
		if idx := strings.IndexByte(cut, ':'); idx >= 0 {
			cut = content[:idx]
		}
	}
	return strings.TrimSpace(strings.ReplaceAll(cut, "\n", " "))
}

// ExtractCallEdges walks function/method bodies for call-expression
// nodes and emits unresolved "calls" edges keyed by the callee's
// identifier text. Resolution against known symbols happens in a later
// pipeline pass (rs.ResolveEdgeTarget), since a callee may be defined in
// a file not yet processed in this batch.
func (e *Extractor) ExtractCallEdges(tree *Tree, projectID, ref, path string, symbols []*rs.SymbolRecord) []*rs.EdgeRecord {
	if tree == nil || tree.Root == nil {
		return []*rs.EdgeRecord{}
	}
	config, ok := e.registry.GetByName(tree.Language)
	if !ok || len(config.CallExpressionTypes) == 0 {
		return []*rs.EdgeRecord{}
	}

	var out []*rs.EdgeRecord
	for _, sym := range symbols {
		if sym.Kind != string(ids.KindFunction) && sym.Kind != string(ids.KindMethod) {
			continue
		}
		body := findNodeByLineRange(tree.Root, sym.LineStart, sym.LineEnd)
		if body == nil {
			continue
		}
		body.Walk(func(n *Node) bool {
			if containsType(config.CallExpressionTypes, n.Type) {
				callee := calleeName(n, tree.Source)
				if callee != "" {
					out = append(out, &rs.EdgeRecord{
						ProjectID:    projectID,
						Ref:          ref,
						FromSymbolID: sym.SymbolID,
						ToName:       callee,
						EdgeType:     string(ids.EdgeCalls),
						Confidence:   string(ids.ConfidenceMedium),
						Outcome:      "unresolved",
						SourceFile:   path,
						SourceLine:   int(n.StartPoint.Row) + 1,
					})
				}
			}
			return true
		})
	}
	return out
}

// calleeName extracts the identifier text of a call expression's
// callee, stripping any receiver/package qualifier (e.g. "pkg.Foo" or
// "obj.Method" yields "Foo"/"Method") since edges are matched by
// unqualified name in the second-pass resolver.
func calleeName(call *Node, source []byte) string {
	if len(call.Children) == 0 {
		return ""
	}
	fn := call.Children[0]
	switch fn.Type {
	case "identifier":
		return fn.GetContent(source)
	case "selector_expression", "member_expression", "attribute":
		if len(fn.Children) > 0 {
			last := fn.Children[len(fn.Children)-1]
			return last.GetContent(source)
		}
	}
	return ""
}

// ExtractImportEdges walks import nodes and emits "imports" edges. The
// target is the raw import path/module text; resolution to an internal
// symbol/file happens downstream, external imports simply stay
// unresolved forever.
func (e *Extractor) ExtractImportEdges(tree *Tree, projectID, ref, path, fileSymbolID string) []*rs.EdgeRecord {
	if tree == nil || tree.Root == nil {
		return []*rs.EdgeRecord{}
	}
	config, ok := e.registry.GetByName(tree.Language)
	if !ok || len(config.ImportTypes) == 0 {
		return []*rs.EdgeRecord{}
	}

	var out []*rs.EdgeRecord
	for _, nodeType := range config.ImportTypes {
		for _, n := range tree.Root.FindAllByType(nodeType) {
			target := importTarget(n, tree.Source)
			if target == "" {
				continue
			}
			out = append(out, &rs.EdgeRecord{
				ProjectID:    projectID,
				Ref:          ref,
				FromSymbolID: fileSymbolID,
				ToName:       target,
				EdgeType:     string(ids.EdgeImports),
				Confidence:   string(ids.ConfidenceHigh),
				Outcome:      "unresolved",
				SourceFile:   path,
				SourceLine:   int(n.StartPoint.Row) + 1,
			})
		}
	}
	return out
}

func importTarget(n *Node, source []byte) string {
	if s := n.FindChildByType("interpreted_string_literal"); s != nil {
		return strings.Trim(s.GetContent(source), "\"")
	}
	if s := n.FindChildByType("string"); s != nil {
		return strings.Trim(s.GetContent(source), "\"'")
	}
	if s := n.FindChildByType("dotted_name"); s != nil {
		return s.GetContent(source)
	}
	return strings.TrimSpace(n.GetContent(source))
}

// findNodeByLineRange returns the deepest node whose span exactly
// matches [startLine, endLine] (1-indexed, inclusive), used to recover
// the declaration node a previously-extracted SymbolRecord came from.
func findNodeByLineRange(root *Node, startLine, endLine int) *Node {
	var best *Node
	root.Walk(func(n *Node) bool {
		ns, ne := int(n.StartPoint.Row)+1, int(n.EndPoint.Row)+1
		if ns == startLine && ne == endLine {
			best = n
		}
		return true
	})
	return best
}
