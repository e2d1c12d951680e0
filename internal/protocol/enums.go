// Package protocol defines the transport-agnostic, protocol-visible
// types shared by every query tool: the closed result/ranking enums,
// and the {jsonrpc, id, method, params} / {result|error,
// id} envelope. internal/mcpserver adapts these onto
// github.com/modelcontextprotocol/go-sdk; this package has no transport
// dependency of its own.
package protocol

import "strings"

// FreshnessPolicy controls how a read reacts to a stale index.
type FreshnessPolicy string

const (
	FreshnessStrict     FreshnessPolicy = "strict"
	FreshnessBalanced   FreshnessPolicy = "balanced"
	FreshnessBestEffort FreshnessPolicy = "best_effort"
)

var freshnessAliases = map[string]FreshnessPolicy{
	"strict":      FreshnessStrict,
	"balanced":    FreshnessBalanced,
	"best_effort": FreshnessBestEffort,
	"best-effort": FreshnessBestEffort, // legacy hyphenated alias
	"lenient":     FreshnessBestEffort, // legacy alias
}

// ParseFreshnessPolicy parses a snake_case string plus legacy aliases,
// never re-serializing the legacy form.
func ParseFreshnessPolicy(s string) (FreshnessPolicy, bool) {
	p, ok := freshnessAliases[strings.ToLower(strings.TrimSpace(s))]
	return p, ok
}

func (p FreshnessPolicy) String() string { return string(p) }

// FreshnessStatus is the outcome of a pre-query staleness check.
type FreshnessStatus string

const (
	FreshnessFresh   FreshnessStatus = "fresh"
	FreshnessStale   FreshnessStatus = "stale"
	FreshnessSyncing FreshnessStatus = "syncing"
)

// PolicyMode controls retrieval-time access/redaction enforcement.
type PolicyMode string

const (
	PolicyOff        PolicyMode = "off"
	PolicyAuditOnly  PolicyMode = "audit_only"
	PolicyBalanced   PolicyMode = "balanced"
	PolicyStrict     PolicyMode = "strict"
)

var policyAliases = map[string]PolicyMode{
	"off":         PolicyOff,
	"audit_only":  PolicyAuditOnly,
	"audit-only":  PolicyAuditOnly,
	"balanced":    PolicyBalanced,
	"strict":      PolicyStrict,
}

// ParsePolicyMode parses a snake_case string plus legacy hyphenated alias.
func ParsePolicyMode(s string) (PolicyMode, bool) {
	m, ok := policyAliases[strings.ToLower(strings.TrimSpace(s))]
	return m, ok
}

func (m PolicyMode) String() string { return string(m) }

// rank, for Mode.Tighten below: higher is stricter.
var policyRank = map[PolicyMode]int{
	PolicyOff:       0,
	PolicyAuditOnly: 1,
	PolicyBalanced:  2,
	PolicyStrict:    3,
}

// Tighten returns the stricter of m and requested: a request may only
// override the configured mode downward in permissiveness, never loosen
// it past the configured floor.
func (m PolicyMode) Tighten(requested PolicyMode) PolicyMode {
	if requested == "" {
		return m
	}
	if policyRank[requested] > policyRank[m] {
		return requested
	}
	return m
}

// QueryIntent is the rule-based classification of a search_code query.
type QueryIntent string

const (
	IntentSymbol          QueryIntent = "symbol"
	IntentPath            QueryIntent = "path"
	IntentError           QueryIntent = "error"
	IntentNaturalLanguage QueryIntent = "natural_language"
)

// SourceLayer tags an overlay-aware result row.
type SourceLayer string

const (
	SourceBase    SourceLayer = "base"
	SourceOverlay SourceLayer = "overlay"
)

// VectorBackend selects the VS implementation; mirrors
// internal/vs.Backend but kept distinct so the protocol layer has no
// import-time dependency on the storage package.
type VectorBackend string

const (
	VectorBackendSQLite  VectorBackend = "sqlite"
	VectorBackendLanceDB VectorBackend = "lancedb"
)

// ContextPackSection is one of the fixed sections of a build_context_pack
// response.
type ContextPackSection string

const (
	SectionDefinitions ContextPackSection = "definitions"
	SectionUsages      ContextPackSection = "usages"
	SectionDeps        ContextPackSection = "deps"
	SectionTests       ContextPackSection = "tests"
	SectionConfig      ContextPackSection = "config"
	SectionDocs        ContextPackSection = "docs"
)

// AllContextPackSections enumerates the fixed section order used when
// no section_caps override is supplied.
var AllContextPackSections = []ContextPackSection{
	SectionDefinitions, SectionUsages, SectionDeps, SectionTests, SectionConfig, SectionDocs,
}

// ContextPackMode controls how aggressively build_context_pack trims
// bodies to fit its token budget.
type ContextPackMode string

const (
	ContextPackFull       ContextPackMode = "full"
	ContextPackEditMinimal ContextPackMode = "edit_minimal"
)

// DetailLevel controls get_code_context's body inclusion.
type DetailLevel string

const (
	DetailBreadth DetailLevel = "breadth"
	DetailDepth   DetailLevel = "depth"
)

// SemanticMode selects the retrieval engine's hybrid-search behavior.
type SemanticMode string

const (
	SemanticOff        SemanticMode = "off"
	SemanticRerankOnly SemanticMode = "rerank_only"
	SemanticHybrid     SemanticMode = "hybrid"
)

var semanticAliases = map[string]SemanticMode{
	"off":         SemanticOff,
	"rerank_only": SemanticRerankOnly,
	"rerank-only": SemanticRerankOnly,
	"hybrid":      SemanticHybrid,
}

// ParseSemanticMode parses a snake_case string plus a legacy hyphenated alias.
func ParseSemanticMode(s string) (SemanticMode, bool) {
	m, ok := semanticAliases[strings.ToLower(strings.TrimSpace(s))]
	return m, ok
}

func (m SemanticMode) String() string { return string(m) }

// SchemaStatus mirrors internal/li.SchemaStatus at the protocol layer.
type SchemaStatus string

const (
	SchemaCompatible      SchemaStatus = "compatible"
	SchemaNotIndexed      SchemaStatus = "not_indexed"
	SchemaReindexRequired SchemaStatus = "reindex_required"
	SchemaCorruptManifest SchemaStatus = "corrupt_manifest"
)

// ResultCompleteness reports whether a response reflects the full
// matching set or was truncated by a limit, budget, or partial index
// coverage.
type ResultCompleteness string

const (
	CompletenessComplete ResultCompleteness = "complete"
	CompletenessPartial  ResultCompleteness = "partial"
)

// RankingExplainLevel controls explain_ranking / ranking_reasons verbosity.
type RankingExplainLevel string

const (
	ExplainOff   RankingExplainLevel = "off"
	ExplainBasic RankingExplainLevel = "basic"
	ExplainFull  RankingExplainLevel = "full"
)

var explainAliases = map[string]RankingExplainLevel{
	"off":   ExplainOff,
	"basic": ExplainBasic,
	"full":  ExplainFull,
}

// ParseRankingExplainLevel parses a snake_case explain level.
func ParseRankingExplainLevel(s string) (RankingExplainLevel, bool) {
	l, ok := explainAliases[strings.ToLower(strings.TrimSpace(s))]
	return l, ok
}
