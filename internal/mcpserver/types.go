package mcpserver

import (
	"github.com/signalridge/codecompass/internal/protocol"
	"github.com/signalridge/codecompass/internal/retrieval"
)

// RowOutput is the wire shape of a single ranked result row, flattened
// from retrieval.Row for a stable JSON schema independent of the
// engine's internal field set.
type RowOutput struct {
	ID            string   `json:"id"`
	Kind          string   `json:"kind" jsonschema:"symbol, snippet, or file"`
	SymbolKind    string   `json:"symbol_kind,omitempty" jsonschema:"function/method/struct/... empty for file rows"`
	Path          string   `json:"path"`
	QualifiedName string   `json:"qualified_name,omitempty"`
	Name          string   `json:"name,omitempty"`
	Signature     string   `json:"signature,omitempty"`
	Language      string   `json:"language,omitempty"`
	LineStart     int      `json:"line_start,omitempty"`
	LineEnd       int      `json:"line_end,omitempty"`
	Content       string   `json:"content,omitempty"`
	Score         float64  `json:"score"`
	BM25Score     float64  `json:"bm25_score,omitempty"`
	VecScore      float64  `json:"vec_score,omitempty"`
	InBoth        bool     `json:"in_both_lists,omitempty"`
	MatchedTerms  []string `json:"matched_terms,omitempty"`
	BoostReasons  []string `json:"boost_reasons,omitempty"`
	SourceLayer   string   `json:"source_layer,omitempty" jsonschema:"base or overlay, set only when ref differs from the project default"`
}

func toRowOutput(r *retrieval.Row) RowOutput {
	if r == nil {
		return RowOutput{}
	}
	return RowOutput{
		ID: r.ID, Kind: string(r.Kind), SymbolKind: r.SymbolKind, Path: r.Path,
		QualifiedName: r.QualifiedName, Name: r.Name, Signature: r.Signature, Language: r.Language,
		LineStart: r.LineStart, LineEnd: r.LineEnd, Content: r.Content,
		Score: r.Score, BM25Score: r.BM25Score, VecScore: r.VecScore, InBoth: r.InBoth,
		MatchedTerms: r.MatchedTerms, BoostReasons: r.BoostReasons, SourceLayer: string(r.SourceLayer),
	}
}

func toRowOutputs(rows []*retrieval.Row) []RowOutput {
	out := make([]RowOutput, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRowOutput(r))
	}
	return out
}

// LocateSymbolInput is the MCP input schema for locate_symbol.
type LocateSymbolInput struct {
	ProjectID string `json:"project_id" jsonschema:"registered project identifier"`
	Name      string `json:"name" jsonschema:"exact or qualified symbol name to locate"`
	Kind      string `json:"kind,omitempty" jsonschema:"filter by symbol kind: function, method, struct, interface, etc."`
	Language  string `json:"language,omitempty" jsonschema:"filter by source language"`
	Ref       string `json:"ref,omitempty" jsonschema:"branch or ref to query, defaults to the project's default ref"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum rows to return, default 20"`
	PolicyMode string `json:"policy_mode,omitempty" jsonschema:"off, audit_only, balanced, or strict; only tightens the server-configured floor"`
	FreshnessPolicy string `json:"freshness_policy,omitempty" jsonschema:"strict, balanced, or best_effort; how to react to a stale index, default best_effort"`
}

// LocateSymbolOutput is the MCP output schema for locate_symbol.
type LocateSymbolOutput struct {
	Rows     []RowOutput        `json:"rows"`
	Metadata *protocol.Metadata `json:"metadata"`
}

// SearchCodeInput is the MCP input schema for search_code.
type SearchCodeInput struct {
	ProjectID string `json:"project_id" jsonschema:"registered project identifier"`
	Query     string `json:"query" jsonschema:"the hybrid lexical/semantic search query"`
	Kind      string `json:"kind,omitempty" jsonschema:"filter by symbol kind"`
	Language  string `json:"language,omitempty" jsonschema:"filter by source language"`
	Ref       string `json:"ref,omitempty" jsonschema:"branch or ref to query, defaults to the project's default ref"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum rows to return, default 20"`
	Debug     bool   `json:"debug,omitempty" jsonschema:"when true, populate ranking_reasons with the full scoring breakdown"`
	PolicyMode string `json:"policy_mode,omitempty" jsonschema:"off, audit_only, balanced, or strict; only tightens the server-configured floor"`
	FreshnessPolicy string `json:"freshness_policy,omitempty" jsonschema:"strict, balanced, or best_effort; how to react to a stale index, default best_effort"`
}

// SearchCodeOutput is the MCP output schema for search_code.
type SearchCodeOutput struct {
	Rows     []RowOutput        `json:"rows"`
	Metadata *protocol.Metadata `json:"metadata"`
}

// FindReferencesInput is the MCP input schema for find_references.
type FindReferencesInput struct {
	ProjectID  string `json:"project_id" jsonschema:"registered project identifier"`
	SymbolName string `json:"symbol_name" jsonschema:"name of the symbol whose callers/usages to resolve"`
	Kind       string `json:"kind,omitempty" jsonschema:"disambiguate by symbol kind when symbol_name is overloaded"`
	Ref        string `json:"ref,omitempty" jsonschema:"branch or ref to query, defaults to the project's default ref"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum rows to return, default 20"`
	PolicyMode string `json:"policy_mode,omitempty" jsonschema:"off, audit_only, balanced, or strict; only tightens the server-configured floor"`
	FreshnessPolicy string `json:"freshness_policy,omitempty" jsonschema:"strict, balanced, or best_effort; how to react to a stale index, default best_effort"`
}

// FindReferencesOutput is the MCP output schema for find_references.
type FindReferencesOutput struct {
	Rows     []RowOutput        `json:"rows"`
	Metadata *protocol.Metadata `json:"metadata"`
}

// DiffContextInput is the MCP input schema for diff_context.
type DiffContextInput struct {
	ProjectID  string `json:"project_id" jsonschema:"registered project identifier"`
	BaseRef    string `json:"base_ref" jsonschema:"ref to diff from"`
	HeadRef    string `json:"head_ref" jsonschema:"ref to diff to"`
	PathFilter string `json:"path_filter,omitempty" jsonschema:"only include changed paths containing this substring"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum changed paths to return, default 20"`
}

// DiffChangeOutput is one file-level change plus the symbols defined in
// that file on head_ref.
type DiffChangeOutput struct {
	Path    string      `json:"path"`
	Kind    string      `json:"kind" jsonschema:"added, modified, or deleted"`
	Symbols []RowOutput `json:"symbols,omitempty"`
}

// DiffContextOutput is the MCP output schema for diff_context.
type DiffContextOutput struct {
	Changes []DiffChangeOutput `json:"changes"`
}

// GetCodeContextInput is the MCP input schema for get_code_context.
type GetCodeContextInput struct {
	ProjectID string `json:"project_id" jsonschema:"registered project identifier"`
	Query     string `json:"query" jsonschema:"the search query whose top results fill the token budget"`
	Ref       string `json:"ref,omitempty" jsonschema:"branch or ref to query, defaults to the project's default ref"`
	Strategy  string `json:"strategy,omitempty" jsonschema:"breadth (signatures only) or depth (full source body); default breadth"`
	MaxTokens int    `json:"max_tokens,omitempty" jsonschema:"approximate token budget for the returned rows, default 4000"`
	PolicyMode string `json:"policy_mode,omitempty" jsonschema:"off, audit_only, balanced, or strict; only tightens the server-configured floor"`
	FreshnessPolicy string `json:"freshness_policy,omitempty" jsonschema:"strict, balanced, or best_effort; how to react to a stale index, default best_effort"`
}

// GetCodeContextOutput is the MCP output schema for get_code_context.
type GetCodeContextOutput struct {
	Rows     []RowOutput        `json:"rows"`
	Metadata *protocol.Metadata `json:"metadata"`
}

// BuildContextPackInput is the MCP input schema for build_context_pack.
type BuildContextPackInput struct {
	ProjectID    string         `json:"project_id" jsonschema:"registered project identifier"`
	Query        string         `json:"query" jsonschema:"the query used to populate every section"`
	Ref          string         `json:"ref,omitempty" jsonschema:"branch or ref to query, defaults to the project's default ref"`
	BudgetTokens int            `json:"budget_tokens,omitempty" jsonschema:"total token budget split evenly across sections, default 8000"`
	Mode         string         `json:"mode,omitempty" jsonschema:"full or edit_minimal; edit_minimal truncates row bodies more aggressively"`
	SectionCaps  map[string]int `json:"section_caps,omitempty" jsonschema:"optional per-section row-count override: definitions, usages, deps, tests, config, docs"`
	PolicyMode   string         `json:"policy_mode,omitempty" jsonschema:"off, audit_only, balanced, or strict; only tightens the server-configured floor"`
	FreshnessPolicy string      `json:"freshness_policy,omitempty" jsonschema:"strict, balanced, or best_effort; how to react to a stale index, default best_effort"`
}

// BuildContextPackOutput is the MCP output schema for build_context_pack.
type BuildContextPackOutput struct {
	Sections             map[string][]RowOutput `json:"sections"`
	DroppedByBudget      map[string]int         `json:"dropped_by_budget"`
	SuggestedNextQueries []string               `json:"suggested_next_queries,omitempty"`
	Metadata             *protocol.Metadata     `json:"metadata"`
}

// ExplainRankingInput is the MCP input schema for explain_ranking.
type ExplainRankingInput struct {
	ProjectID       string `json:"project_id" jsonschema:"registered project identifier"`
	Query           string `json:"query" jsonschema:"the query whose ranking pass produced the result being explained"`
	Ref             string `json:"ref,omitempty" jsonschema:"branch or ref to query, defaults to the project's default ref"`
	ResultPath      string `json:"result_path" jsonschema:"path of the result row to explain, from a prior search_code response"`
	ResultLineStart int    `json:"result_line_start,omitempty" jsonschema:"line_start of the result row to explain"`
}

// ExplainRankingOutput is the MCP output schema for explain_ranking.
type ExplainRankingOutput struct {
	Row          RowOutput `json:"row"`
	BM25Score    float64   `json:"bm25_score"`
	VecScore     float64   `json:"vec_score"`
	FinalScore   float64   `json:"final_score"`
	BoostReasons []string  `json:"boost_reasons,omitempty"`
	SourceLayer  string    `json:"source_layer,omitempty"`
	InBoth       bool      `json:"in_both_lists"`
}
