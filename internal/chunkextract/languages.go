package chunkextract

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageRegistry maps file extensions and language names to both
// their tree-sitter grammar and their LanguageConfig.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry builds a registry with Go, TypeScript, TSX,
// JavaScript, JSX, and Python support.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}
	r.registerGo()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()
	return r
}

func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	cfg, ok := r.configs[name]
	return cfg, ok
}

func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[name]
	return lang, ok
}

func (r *LanguageRegistry) registerLanguage(cfg *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.tsLanguages[cfg.Name] = tsLang
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

func (r *LanguageRegistry) registerGo() {
	cfg := &LanguageConfig{
		Name:                "go",
		Extensions:          []string{".go"},
		FunctionTypes:       []string{"function_declaration"},
		MethodTypes:         []string{"method_declaration"},
		TypeDefTypes:        []string{"type_declaration"},
		ConstantTypes:       []string{"const_declaration"},
		VariableTypes:       []string{"var_declaration"},
		CallExpressionTypes: []string{"call_expression"},
		ImportTypes:         []string{"import_spec"},
		NameField:           "name",
	}
	r.registerLanguage(cfg, golang.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	tsConfig := &LanguageConfig{
		Name:                "typescript",
		Extensions:          []string{".ts"},
		FunctionTypes:       []string{"function_declaration"},
		MethodTypes:         []string{"method_definition"},
		ClassTypes:          []string{"class_declaration"},
		InterfaceTypes:      []string{"interface_declaration"},
		TypeDefTypes:        []string{"type_alias_declaration"},
		ConstantTypes:       []string{"lexical_declaration"},
		VariableTypes:       []string{"variable_declaration"},
		CallExpressionTypes: []string{"call_expression"},
		ImportTypes:         []string{"import_statement"},
		NameField:           "name",
	}
	r.registerLanguage(tsConfig, typescript.GetLanguage())

	tsxConfig := &LanguageConfig{
		Name: "tsx", Extensions: []string{".tsx"},
		FunctionTypes: tsConfig.FunctionTypes, MethodTypes: tsConfig.MethodTypes,
		ClassTypes: tsConfig.ClassTypes, InterfaceTypes: tsConfig.InterfaceTypes,
		TypeDefTypes: tsConfig.TypeDefTypes, ConstantTypes: tsConfig.ConstantTypes,
		VariableTypes: tsConfig.VariableTypes, CallExpressionTypes: tsConfig.CallExpressionTypes,
		ImportTypes: tsConfig.ImportTypes, NameField: tsConfig.NameField,
	}
	r.registerLanguage(tsxConfig, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	jsConfig := &LanguageConfig{
		Name:                "javascript",
		Extensions:          []string{".js", ".mjs"},
		FunctionTypes:       []string{"function_declaration", "function"},
		MethodTypes:         []string{"method_definition"},
		ClassTypes:          []string{"class_declaration"},
		ConstantTypes:       []string{"lexical_declaration"},
		VariableTypes:       []string{"variable_declaration"},
		CallExpressionTypes: []string{"call_expression"},
		ImportTypes:         []string{"import_statement"},
		NameField:           "name",
	}
	r.registerLanguage(jsConfig, javascript.GetLanguage())

	jsxConfig := &LanguageConfig{
		Name: "jsx", Extensions: []string{".jsx"},
		FunctionTypes: jsConfig.FunctionTypes, MethodTypes: jsConfig.MethodTypes,
		ClassTypes: jsConfig.ClassTypes, ConstantTypes: jsConfig.ConstantTypes,
		VariableTypes: jsConfig.VariableTypes, CallExpressionTypes: jsConfig.CallExpressionTypes,
		ImportTypes: jsConfig.ImportTypes, NameField: jsConfig.NameField,
	}
	r.registerLanguage(jsxConfig, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	cfg := &LanguageConfig{
		Name:                "python",
		Extensions:          []string{".py"},
		FunctionTypes:       []string{"function_definition"},
		ClassTypes:          []string{"class_definition"},
		VariableTypes:       []string{"assignment"},
		CallExpressionTypes: []string{"call"},
		ImportTypes:         []string{"import_statement", "import_from_statement"},
		NameField:           "name",
	}
	r.registerLanguage(cfg, python.GetLanguage())
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the shared language registry.
func DefaultRegistry() *LanguageRegistry { return defaultRegistry }
