package retrieval

import (
	"context"
	"path"
	"strings"
	"time"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
	"github.com/signalridge/codecompass/internal/protocol"
	"github.com/signalridge/codecompass/internal/rs"
	"github.com/signalridge/codecompass/internal/telemetry"
	"github.com/signalridge/codecompass/internal/vcsadapter"
)

const defaultLimit = 20

// Result is the common envelope every tool method returns: the ranked
// rows plus the response metadata object.
type Result struct {
	Rows     []*Row
	Metadata *protocol.Metadata
}

// newMetadata runs the freshness check for sc under the requested
// policy and builds the response metadata. It returns a StaleIndex
// error instead of metadata when the strict policy blocks a stale read.
func (e *Engine) newMetadata(ctx context.Context, sc *queryScope, requestedPolicy protocol.FreshnessPolicy, completeness protocol.ResultCompleteness) (*protocol.Metadata, error) {
	status, resolvedPolicy, blocked := e.checkFreshness(ctx, sc, requestedPolicy)
	if blocked {
		return nil, ccerrors.StaleIndex(sc.Project.ID, sc.ref())
	}
	meta := protocol.NewMetadata(sc.ref(), e.schemaStatusFor(sc), status, completeness)
	meta.FreshnessPolicy = resolvedPolicy
	return meta, nil
}

func completenessOf(returned, limit int) protocol.ResultCompleteness {
	if returned >= limit {
		return protocol.CompletenessPartial
	}
	return protocol.CompletenessComplete
}

// LocateSymbolRequest resolves a symbol by exact or qualified name.
type LocateSymbolRequest struct {
	ProjectID       string
	Ref             string
	Name            string
	Kind            string
	Language        string
	PolicyMode      protocol.PolicyMode
	FreshnessPolicy protocol.FreshnessPolicy
	Limit           int
}

// LocateSymbol finds symbols matching name exactly, falling back to a
// lexical search over qualified names when no exact match exists.
func (e *Engine) LocateSymbol(ctx context.Context, req LocateSymbolRequest) (*Result, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	sc, err := e.resolveScope(ctx, req.ProjectID, req.Ref)
	if err != nil {
		return nil, err
	}

	exact, err := e.RS.SearchSymbolsByName(ctx, req.ProjectID, sc.ref(), req.Name, limit)
	if err != nil {
		return nil, err
	}
	var rows []*Row
	for _, sym := range exact {
		if req.Kind != "" && !strings.EqualFold(sym.Kind, req.Kind) {
			continue
		}
		if req.Language != "" && !strings.EqualFold(sym.Language, req.Language) {
			continue
		}
		row := symbolRow(sym, 1.0, nil)
		row.Score = 1.0
		row.SourceLayer = LayerBase
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		rows, err = e.overlayAwareSearch(ctx, sc, req.Name, limit, req.Kind)
		if err != nil {
			return nil, err
		}
		rows = filterByLanguage(rows, req.Language)
		for _, r := range rows {
			r.Score = r.BM25Score
		}
		SortDeterministic(rows)
	}
	if len(rows) == 0 {
		return nil, ccerrors.SymbolNotFound(req.Name)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	filtered, counters, err := e.applyPolicy(ctx, req.PolicyMode, rows)
	if err != nil {
		return nil, err
	}
	meta, err := e.newMetadata(ctx, sc, req.FreshnessPolicy, completenessOf(len(filtered), limit))
	if err != nil {
		return nil, err
	}
	meta.Policy = counters
	return &Result{Rows: filtered, Metadata: meta}, nil
}

// SearchCodeRequest runs the hybrid lexical/semantic query.
type SearchCodeRequest struct {
	ProjectID       string
	Ref             string
	Query           string
	Kind            string
	Language        string
	PolicyMode      protocol.PolicyMode
	FreshnessPolicy protocol.FreshnessPolicy
	RankingExplain  protocol.RankingExplainLevel
	Limit           int
}

// filterByLanguage drops rows whose Language doesn't match lang,
// case-insensitively. An empty lang is a no-op.
func filterByLanguage(rows []*Row, lang string) []*Row {
	if lang == "" {
		return rows
	}
	out := rows[:0]
	for _, r := range rows {
		if strings.EqualFold(r.Language, lang) {
			out = append(out, r)
		}
	}
	return out
}

// SearchCode is the primary hybrid retrieval tool: classifies query intent, runs the hybrid blend, applies
// the local/remote reranker, and enforces policy.
func (e *Engine) SearchCode(ctx context.Context, req SearchCodeRequest) (*Result, error) {
	start := time.Now()
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	sc, err := e.resolveScope(ctx, req.ProjectID, req.Ref)
	if err != nil {
		return nil, err
	}

	intent := ClassifyIntent(req.Query)
	rows, decision, err := e.hybridSearch(ctx, sc, req.Query, limit, req.Kind)
	if err != nil {
		return nil, err
	}
	defer func() {
		e.recordQueryMetrics(req.Query, decision.Triggered, len(rows), time.Since(start))
	}()
	rows = filterByLanguage(rows, req.Language)

	var rerankReason RerankFailureReason
	if e.Config.SemanticMode != protocol.SemanticOff && len(rows) > 0 {
		reason, ok := rerankOrFallback(ctx, e.Reranker, req.Query, rows)
		if !ok {
			rerankReason = reason
		}
	}

	if len(rows) > limit {
		rows = rows[:limit]
	}
	filtered, counters, err := e.applyPolicy(ctx, req.PolicyMode, rows)
	if err != nil {
		return nil, err
	}

	meta, err := e.newMetadata(ctx, sc, req.FreshnessPolicy, completenessOf(len(filtered), limit))
	if err != nil {
		return nil, err
	}
	meta.Policy = counters
	triggered := decision.Triggered
	meta.SemanticTriggered = &triggered
	meta.SemanticSkippedReason = decision.SkippedReason
	if rerankReason != "" {
		if meta.SemanticSkippedReason == "" {
			meta.SemanticSkippedReason = string(rerankReason)
		}
	}
	ratio := decision.RatioUsed
	meta.SemanticRatioUsed = &ratio
	if req.RankingExplain != protocol.ExplainOff {
		meta.RankingReasons = append(meta.RankingReasons, "intent:"+string(intent))
		for _, r := range filtered {
			meta.RankingReasons = append(meta.RankingReasons, r.BoostReasons...)
		}
	}
	return &Result{Rows: filtered, Metadata: meta}, nil
}

// FindReferencesRequest resolves every usage site of a symbol by name.
type FindReferencesRequest struct {
	ProjectID       string
	Ref             string
	SymbolName      string
	Kind            string
	EdgeType        string
	PolicyMode      protocol.PolicyMode
	FreshnessPolicy protocol.FreshnessPolicy
	Limit           int
}

// resolveSymbolByName resolves symbol_name to a single SymbolRecord the
// way locate_symbol would, picking the first exact (optionally
// kind-filtered) match.
func (e *Engine) resolveSymbolByName(ctx context.Context, projectID, ref, name, kind string) (*rs.SymbolRecord, error) {
	matches, err := e.RS.SearchSymbolsByName(ctx, projectID, ref, name, defaultLimit)
	if err != nil {
		return nil, err
	}
	for _, sym := range matches {
		if kind != "" && !strings.EqualFold(sym.Kind, kind) {
			continue
		}
		return sym, nil
	}
	return nil, nil
}

// FindReferences returns every edge resolved to the symbol named by
// SymbolName, each annotated with the calling symbol's source line.
func (e *Engine) FindReferences(ctx context.Context, req FindReferencesRequest) (*Result, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	sc, err := e.resolveScope(ctx, req.ProjectID, req.Ref)
	if err != nil {
		return nil, err
	}

	target, err := e.resolveSymbolByName(ctx, req.ProjectID, sc.ref(), req.SymbolName, req.Kind)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ccerrors.SymbolNotFound(req.SymbolName)
	}

	edges, err := e.RS.GetEdgesTo(ctx, target.SymbolID, req.EdgeType)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, ccerrors.NoEdgesAvailable(target.Name)
	}

	var rows []*Row
	for _, edge := range edges {
		caller, err := e.RS.GetSymbol(ctx, edge.FromSymbolID)
		if err != nil {
			return nil, err
		}
		if caller == nil {
			continue
		}
		content, err := e.readSourceLines(ctx, sc, edge.SourceFile, edge.SourceLine, edge.SourceLine)
		if err != nil {
			content = ""
		}
		row := symbolRow(caller, 0, nil)
		row.Score = edge.Weight
		row.Content = content
		row.LineStart, row.LineEnd = edge.SourceLine, edge.SourceLine
		row.Path = edge.SourceFile
		rows = append(rows, row)
	}
	SortDeterministic(rows)
	if len(rows) > limit {
		rows = rows[:limit]
	}

	filtered, counters, err := e.applyPolicy(ctx, req.PolicyMode, rows)
	if err != nil {
		return nil, err
	}
	meta, err := e.newMetadata(ctx, sc, req.FreshnessPolicy, completenessOf(len(filtered), limit))
	if err != nil {
		return nil, err
	}
	meta.Policy = counters
	return &Result{Rows: filtered, Metadata: meta}, nil
}

// DiffChange is a single file-level change with its resolved symbols.
type DiffChange struct {
	Path    string
	Kind    string
	Symbols []*Row
}

// DiffContextRequest compares two refs of the same project.
type DiffContextRequest struct {
	ProjectID  string
	FromRef    string
	ToRef      string
	PathFilter string
	Limit      int
}

// DiffContext returns the path-level changes between FromRef and ToRef
// plus the symbols defined in each changed file on ToRef.
func (e *Engine) DiffContext(ctx context.Context, req DiffContextRequest) ([]*DiffChange, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	sc, err := e.resolveScope(ctx, req.ProjectID, req.ToRef)
	if err != nil {
		return nil, err
	}

	repo, err := vcsadapter.Open(sc.Project.RepoRoot)
	if err != nil {
		return nil, err
	}
	changes, err := repo.DiffNameStatus(ctx, req.FromRef, req.ToRef)
	if err != nil {
		return nil, err
	}
	if req.PathFilter != "" {
		filtered := changes[:0]
		for _, c := range changes {
			if strings.Contains(c.Path, req.PathFilter) {
				filtered = append(filtered, c)
			}
		}
		changes = filtered
	}
	if len(changes) > limit {
		changes = changes[:limit]
	}

	out := make([]*DiffChange, 0, len(changes))
	for _, c := range changes {
		dc := &DiffChange{Path: c.Path, Kind: string(c.Kind)}
		if c.Kind != "deleted" {
			syms, err := e.symbolsForPath(ctx, req.ProjectID, sc.ref(), c.Path)
			if err != nil {
				return nil, err
			}
			dc.Symbols = syms
		}
		out = append(out, dc)
	}
	return out, nil
}

func (e *Engine) symbolsForPath(ctx context.Context, projectID, ref, path string) ([]*Row, error) {
	all, err := e.RS.ListSymbolsForRef(ctx, projectID, ref)
	if err != nil {
		return nil, err
	}
	var rows []*Row
	for _, sym := range all {
		if sym.Path != path {
			continue
		}
		rows = append(rows, symbolRow(sym, 0, nil))
	}
	SortDeterministic(rows)
	return rows, nil
}

const defaultMaxTokens = 4000

// GetCodeContextRequest runs query and returns a token-bounded list of
// top results.
type GetCodeContextRequest struct {
	ProjectID       string
	Ref             string
	Query           string
	Strategy        protocol.DetailLevel // breadth: signatures only, depth: full body
	MaxTokens       int
	PolicyMode      protocol.PolicyMode
	FreshnessPolicy protocol.FreshnessPolicy
}

// GetCodeContext runs the hybrid search and greedily fills MaxTokens
// with the top-ranked rows in order, fetching each row's full source
// body under DetailDepth or leaving only its signature/snippet under
// DetailBreadth.
func (e *Engine) GetCodeContext(ctx context.Context, req GetCodeContextRequest) (*Result, error) {
	sc, err := e.resolveScope(ctx, req.ProjectID, req.Ref)
	if err != nil {
		return nil, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	rows, _, err := e.hybridSearch(ctx, sc, req.Query, defaultLimit, "")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ccerrors.ResultNotFound("no results for query: " + req.Query)
	}

	budget := maxTokens
	var selected []*Row
	for _, row := range rows {
		if req.Strategy == protocol.DetailDepth && row.Kind == RowSymbol {
			content, err := e.readSourceLines(ctx, sc, row.Path, row.LineStart, row.LineEnd)
			if err == nil {
				row.Content = content
			}
		} else if req.Strategy != protocol.DetailDepth {
			row.Content = ""
		}
		cost := estimateTokens(row.Content) + estimateTokens(row.Signature)
		if len(selected) > 0 && cost > budget {
			break
		}
		selected = append(selected, row)
		budget -= cost
	}

	filtered, counters, err := e.applyPolicy(ctx, req.PolicyMode, selected)
	if err != nil {
		return nil, err
	}
	completeness := protocol.CompletenessComplete
	if len(selected) < len(rows) {
		completeness = protocol.CompletenessPartial
	}
	meta, err := e.newMetadata(ctx, sc, req.FreshnessPolicy, completeness)
	if err != nil {
		return nil, err
	}
	meta.Policy = counters
	return &Result{Rows: filtered, Metadata: meta}, nil
}

// ContextPackRequest builds a section-organized bundle of results for a
// query, suitable for pasting into an LLM prompt.
type ContextPackRequest struct {
	ProjectID       string
	Ref             string
	Query           string
	Mode            protocol.ContextPackMode
	BudgetTokens    int
	SectionCaps     map[protocol.ContextPackSection]int // row-count override per section; defaults to an equal split of BudgetTokens
	PolicyMode      protocol.PolicyMode
	FreshnessPolicy protocol.FreshnessPolicy
	Limit           int
}

// ContextPack is the fixed-section bundle build_context_pack returns:
// definitions/usages/deps/tests/config/docs, each capped independently,
// plus the coverage-gap fields reporting what was dropped by budget.
type ContextPack struct {
	Sections            map[protocol.ContextPackSection][]*Row
	DroppedByBudget     map[protocol.ContextPackSection]int
	SuggestedNextQueries []string
	Metadata            *protocol.Metadata
}

const defaultBudgetTokens = 8000

// BuildContextPack runs the hybrid search once, then partitions the
// ranked rows into the fixed context-pack sections by path/kind
// heuristics, filling each section until its share of BudgetTokens (or
// its SectionCaps override) is spent, trimming bodies further under
// ContextPackEditMinimal.
func (e *Engine) BuildContextPack(ctx context.Context, req ContextPackRequest) (*ContextPack, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	budgetTokens := req.BudgetTokens
	if budgetTokens <= 0 {
		budgetTokens = defaultBudgetTokens
	}
	sc, err := e.resolveScope(ctx, req.ProjectID, req.Ref)
	if err != nil {
		return nil, err
	}

	rows, decision, err := e.hybridSearch(ctx, sc, req.Query, limit*len(protocol.AllContextPackSections), "")
	if err != nil {
		return nil, err
	}
	filtered, counters, err := e.applyPolicy(ctx, req.PolicyMode, rows)
	if err != nil {
		return nil, err
	}

	perSectionBudget := budgetTokens / len(protocol.AllContextPackSections)
	sectionTokensSpent := make(map[protocol.ContextPackSection]int, len(protocol.AllContextPackSections))
	sections := make(map[protocol.ContextPackSection][]*Row, len(protocol.AllContextPackSections))
	dropped := make(map[protocol.ContextPackSection]int, len(protocol.AllContextPackSections))
	for _, row := range filtered {
		section := classifySection(row)
		if req.Mode == protocol.ContextPackEditMinimal && len(row.Content) > 400 {
			row.Content = row.Content[:400]
		}
		if rowCap, ok := req.SectionCaps[section]; ok && len(sections[section]) >= rowCap {
			dropped[section]++
			continue
		}
		cost := estimateTokens(row.Content) + estimateTokens(row.Signature)
		if len(sections[section]) > 0 && sectionTokensSpent[section]+cost > perSectionBudget {
			dropped[section]++
			continue
		}
		sections[section] = append(sections[section], row)
		sectionTokensSpent[section] += cost
	}

	var suggestions []string
	for _, section := range protocol.AllContextPackSections {
		if len(sections[section]) == 0 || dropped[section] > 0 {
			suggestions = append(suggestions, req.Query+" "+string(section))
		}
	}

	meta, err := e.newMetadata(ctx, sc, req.FreshnessPolicy, completenessOf(len(filtered), limit*len(protocol.AllContextPackSections)))
	if err != nil {
		return nil, err
	}
	meta.Policy = counters
	triggered := decision.Triggered
	meta.SemanticTriggered = &triggered
	meta.SemanticSkippedReason = decision.SkippedReason
	return &ContextPack{Sections: sections, DroppedByBudget: dropped, SuggestedNextQueries: suggestions, Metadata: meta}, nil
}

func classifySection(row *Row) protocol.ContextPackSection {
	base := path.Base(row.Path)
	ext := path.Ext(row.Path)
	switch {
	case strings.Contains(base, "_test.") || strings.Contains(base, ".test.") || strings.HasPrefix(base, "test_"):
		return protocol.SectionTests
	case ext == ".md" || ext == ".rst" || ext == ".txt":
		return protocol.SectionDocs
	case ext == ".yaml" || ext == ".yml" || ext == ".toml" || ext == ".json" || base == "Dockerfile":
		return protocol.SectionConfig
	case row.Kind == RowSymbol && row.InBoth:
		return protocol.SectionUsages
	case row.Kind == RowSymbol:
		return protocol.SectionDefinitions
	default:
		return protocol.SectionDeps
	}
}

// ExplainRankingRequest reruns a query and reports the score breakdown
// for one specific result row, identified by (result_path,
// result_line_start) rather than its internal row ID, matching the
// coordinates a caller already has from a prior search_code response.
type ExplainRankingRequest struct {
	ProjectID       string
	Ref             string
	Query           string
	ResultPath      string
	ResultLineStart int
	Kind            string
}

// RankingExplanation is the score breakdown for a single row, returned
// by explain_ranking.
type RankingExplanation struct {
	Row          *Row
	BM25Score    float64
	VecScore     float64
	FinalScore   float64
	BoostReasons []string
	SourceLayer  SourceLayer
	InBoth       bool
}

// ExplainRanking reruns SearchCode's ranking pipeline for Query and
// reports exactly how the row at (ResultPath, ResultLineStart) had its
// final score assembled, never returning a row that wasn't actually
// produced by a live ranking pass.
func (e *Engine) ExplainRanking(ctx context.Context, req ExplainRankingRequest) (*RankingExplanation, error) {
	sc, err := e.resolveScope(ctx, req.ProjectID, req.Ref)
	if err != nil {
		return nil, err
	}
	rows, _, err := e.hybridSearch(ctx, sc, req.Query, defaultLimit*4, req.Kind)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.Path == req.ResultPath && r.LineStart == req.ResultLineStart {
			return &RankingExplanation{
				Row: r, BM25Score: r.BM25Score, VecScore: r.VecScore, FinalScore: r.Score,
				BoostReasons: r.BoostReasons, SourceLayer: r.SourceLayer, InBoth: r.InBoth,
			}, nil
		}
	}
	return nil, ccerrors.ResultNotFound("row at " + req.ResultPath + " is not in the current ranking for this query")
}

// recordQueryMetrics is a no-op when the engine wasn't built against a
// relational store (e.g. a test Engine with RS: nil).
func (e *Engine) recordQueryMetrics(query string, semanticTriggered bool, resultCount int, latency time.Duration) {
	if e.metrics == nil {
		return
	}
	queryType := telemetry.QueryTypeLexical
	if semanticTriggered {
		queryType = telemetry.QueryTypeMixed
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query: query, QueryType: queryType, ResultCount: resultCount,
		Latency: latency, Timestamp: time.Now(),
	})
}
