package retrieval

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalridge/codecompass/internal/cache"
	ccerrors "github.com/signalridge/codecompass/internal/errors"
	"github.com/signalridge/codecompass/internal/freshness"
	"github.com/signalridge/codecompass/internal/li"
	"github.com/signalridge/codecompass/internal/policy"
	"github.com/signalridge/codecompass/internal/protocol"
	"github.com/signalridge/codecompass/internal/rs"
	"github.com/signalridge/codecompass/internal/telemetry"
	"github.com/signalridge/codecompass/internal/vs"
	"github.com/signalridge/codecompass/internal/vcsadapter"
)

const liSetCacheSize = 64

// Engine implements the seven query tools against the
// RS/LI/VS storage triad, applying scoring boosts, the hybrid semantic
// blend, the local rerank fallback, overlay-aware reads, and the
// retrieval-time policy layer to every result.
type Engine struct {
	RS        *rs.Store
	VS        vs.Store
	Embedder  Embedder
	Reranker  Reranker
	Policy    *policy.Engine
	Freshness *freshness.Checker
	DataDir   string
	Config    Config

	liCache *cache.LRU[string, *li.Set]
	metrics *telemetry.QueryMetrics
}

// New builds an Engine. policyEngine and reranker may be nil: nil
// policyEngine means no enforcement, nil reranker means rerank always
// falls back to the local rule-based reranker. Query-pattern telemetry
// is recorded against store's own connection whenever store is non-nil.
// The freshness checker is built with a nil indexer: the query-serving
// process doesn't carry its own indexing pipeline, so a stale read
// under the balanced policy proceeds without firing an async resync
// (freshness.New documents this as the read-only-deployment case);
// a dedicated reindex daemon remains the path for continuous sync.
func New(store *rs.Store, vectorStore vs.Store, embedder Embedder, reranker Reranker, policyEngine *policy.Engine, dataDir string, cfg Config) (*Engine, error) {
	liCache, err := cache.NewLRU[string, *li.Set](liSetCacheSize)
	if err != nil {
		return nil, ccerrors.InternalError("failed to build LI set cache", err)
	}

	var metrics *telemetry.QueryMetrics
	var freshnessChecker *freshness.Checker
	if store != nil {
		if err := telemetry.InitTelemetrySchema(store.DB()); err != nil {
			return nil, ccerrors.InternalError("failed to initialize telemetry schema", err)
		}
		metricsStore, err := telemetry.NewSQLiteMetricsStore(store.DB())
		if err != nil {
			return nil, ccerrors.InternalError("failed to open telemetry store", err)
		}
		metrics = telemetry.NewQueryMetrics(metricsStore)
		freshnessChecker = freshness.New(store, nil)
	}

	return &Engine{
		RS: store, VS: vectorStore, Embedder: embedder, Reranker: reranker,
		Policy: policyEngine, Freshness: freshnessChecker, DataDir: dataDir, Config: cfg, liCache: liCache,
		metrics: metrics,
	}, nil
}

// Close stops the query-metrics flush loop, if one was started. It does
// not close RS or VS, which the caller opened and owns.
func (e *Engine) Close() error {
	if e.metrics == nil {
		return nil
	}
	return e.metrics.Close()
}

// queryScope is the resolved (project, ref) context every tool method
// operates against: the project row, its branch state, and the base
// and (if ref is an overlay) overlay LI sets.
type queryScope struct {
	Project *rs.Project
	Branch  *rs.BranchState
	Base    *li.Set
	Overlay *li.Set // nil when ref is the default branch
}

func (e *Engine) resolveScope(ctx context.Context, projectID, ref string) (*queryScope, error) {
	proj, err := e.RS.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		ref = proj.DefaultRef
	}
	branch, err := e.RS.GetBranchState(ctx, projectID, ref)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, ccerrors.RefNotIndexed(projectID, ref)
	}

	base, err := e.openLISet(e.baseRoot(projectID))
	if err != nil {
		return nil, err
	}
	scope := &queryScope{Project: proj, Branch: branch, Base: base}
	if !branch.IsDefaultBranch {
		if branch.OverlayDir == "" {
			return nil, ccerrors.OverlayNotReady(ref)
		}
		overlay, err := e.openLISet(branch.OverlayDir)
		if err != nil {
			return nil, err
		}
		scope.Overlay = overlay
	}
	return scope, nil
}

func (e *Engine) baseRoot(projectID string) string {
	if e.DataDir == "" {
		return ""
	}
	return filepath.Join(e.DataDir, projectID, "base")
}

func (e *Engine) openLISet(root string) (*li.Set, error) {
	if set, ok := e.liCache.Get(root); ok {
		return set, nil
	}
	set, err := li.Open(root)
	if err != nil {
		return nil, err
	}
	e.liCache.Add(root, set)
	return set, nil
}

func (sc *queryScope) ref() string { return sc.Branch.Ref }

func (e *Engine) schemaStatusFor(sc *queryScope) protocol.SchemaStatus {
	if sc.Overlay != nil {
		return protocol.SchemaStatus(li.Status(sc.Branch.OverlayDir))
	}
	return protocol.SchemaStatus(li.Status(e.baseRoot(sc.Project.ID)))
}

// resolveSymbolHit turns an LI hit's docID (projectID:ref:symbolID) into
// a full SymbolRecord plus which layer it was read from.
func (e *Engine) resolveSymbolHit(ctx context.Context, hit *li.Hit) (*rs.SymbolRecord, error) {
	parts := strings.SplitN(hit.DocID, ":", 3)
	if len(parts) != 3 {
		return nil, nil
	}
	return e.RS.GetSymbol(ctx, parts[2])
}

func (e *Engine) resolveFileHit(ctx context.Context, hit *li.Hit) (*rs.FileRecord, error) {
	parts := strings.SplitN(hit.DocID, ":", 3)
	if len(parts) != 3 {
		return nil, nil
	}
	return e.RS.GetFile(ctx, parts[0], parts[1], parts[2])
}

func symbolRow(sym *rs.SymbolRecord, bm25 float64, matched []string) *Row {
	return &Row{
		ID: sym.SymbolID, Kind: RowSymbol, SymbolKind: sym.Kind, Path: sym.Path,
		QualifiedName: sym.QualifiedName, Name: sym.Name, Signature: sym.Signature,
		Language: sym.Language, LineStart: sym.LineStart, LineEnd: sym.LineEnd,
		BM25Score: bm25, MatchedTerms: matched, mergeKey: sym.SymbolStableID,
	}
}

func fileRow(f *rs.FileRecord, bm25 float64, matched []string) *Row {
	return &Row{
		ID: f.Path, Kind: RowFile, Path: f.Path, Language: f.Language,
		Content: f.ContentHead, BM25Score: bm25, MatchedTerms: matched, mergeKey: f.Path,
	}
}

// normalizeBM25 rescales raw Bleve scores into a roughly [0,1] range
// relative to the top hit in the batch, so blendScores/shouldShortCircuit
// compare like with like regardless of corpus size or query length
// (Bleve's raw TF-IDF-derived scores are unbounded).
func normalizeBM25(rows []*Row) {
	if len(rows) == 0 {
		return
	}
	max := rows[0].BM25Score
	for _, r := range rows {
		if r.BM25Score > max {
			max = r.BM25Score
		}
	}
	if max <= 0 {
		return
	}
	for _, r := range rows {
		r.BM25Score /= max
	}
}

// searchLI runs a query against one LI set's symbol+snippet indices,
// resolves hits back to RS rows, and returns boosted, normalized, and
// merge-keyed Rows.
func (e *Engine) searchLI(ctx context.Context, set *li.Set, query string, limit int, wantKind string) ([]*Row, error) {
	if set == nil {
		return nil, nil
	}
	tokens := queryTokens(query)
	var rows []*Row

	symHits, err := set.SearchSymbols(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	for _, h := range symHits {
		sym, err := e.resolveSymbolHit(ctx, h)
		if err != nil {
			return nil, err
		}
		if sym == nil {
			continue
		}
		row := symbolRow(sym, h.Score, h.MatchedTerms)
		row.BoostReasons = applyScoringBoosts(row, tokens, wantKind)
		rows = append(rows, row)
	}

	fileHits, err := set.SearchFiles(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	for _, h := range fileHits {
		f, err := e.resolveFileHit(ctx, h)
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		row := fileRow(f, h.Score, h.MatchedTerms)
		row.BoostReasons = applyScoringBoosts(row, tokens, wantKind)
		rows = append(rows, row)
	}

	normalizeBM25(rows)
	SortDeterministic(rows)
	return rows, nil
}

// overlayAwareSearch runs searchLI against base and, if present,
// overlay, then merges per the overlay-aware read rules.
func (e *Engine) overlayAwareSearch(ctx context.Context, sc *queryScope, query string, limit int, wantKind string) ([]*Row, error) {
	baseRows, err := e.searchLI(ctx, sc.Base, query, limit, wantKind)
	if err != nil {
		return nil, err
	}
	if sc.Overlay == nil {
		for _, r := range baseRows {
			r.SourceLayer = LayerBase
		}
		return baseRows, nil
	}
	overlayRows, err := e.searchLI(ctx, sc.Overlay, query, limit, wantKind)
	if err != nil {
		return nil, err
	}
	tombstoned, err := e.RS.ListTombstones(ctx, sc.Project.ID, sc.ref())
	if err != nil {
		return nil, err
	}
	tombstoneSet := make(map[string]bool, len(tombstoned))
	for _, p := range tombstoned {
		tombstoneSet[p] = true
	}
	merged := mergeOverlayRows(baseRows, overlayRows, tombstoneSet)
	SortDeterministic(merged)
	return merged, nil
}

func (e *Engine) vectorSearch(ctx context.Context, sc *queryScope, query string, limit int) ([]*Row, *SemanticDecision, error) {
	decision := &SemanticDecision{RatioUsed: e.Config.SemanticRatio}
	if e.Config.SemanticMode == protocol.SemanticOff {
		decision.SkippedReason = "mode_off"
		return nil, decision, nil
	}
	if e.VS == nil || !e.VS.Available() || e.Embedder == nil {
		decision.SkippedReason = "adapter_unavailable"
		return nil, decision, nil
	}
	vectors, modelVersion, err := e.Embedder.EmbedBatch(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		decision.SkippedReason = "embedder_unavailable"
		return nil, decision, nil
	}
	key := vs.PartitionKey{ProjectID: sc.Project.ID, Ref: sc.ref(), EmbeddingModelVersion: modelVersion}
	results, err := e.VS.Search(ctx, key, vectors[0], limit)
	if err != nil {
		return nil, nil, err
	}
	rows := make([]*Row, 0, len(results))
	for _, r := range results {
		sym, err := e.RS.GetSymbolByStableID(ctx, sc.Project.ID, sc.ref(), r.SymbolStableID)
		if err != nil {
			return nil, nil, err
		}
		row := &Row{VecScore: r.Score, Path: r.Path, LineStart: r.LineStart, LineEnd: r.LineEnd, mergeKey: r.SymbolStableID}
		if sym != nil {
			row.ID = sym.SymbolID
			row.Kind = RowSymbol
			row.SymbolKind = sym.Kind
			row.QualifiedName = sym.QualifiedName
			row.Name = sym.Name
			row.Signature = sym.Signature
			row.Language = sym.Language
			row.Content = ""
		} else {
			row.ID = r.Path
			row.Kind = RowFile
		}
		rows = append(rows, row)
	}
	decision.Triggered = true
	return rows, decision, nil
}

// hybridSearch runs the lexical search, short-circuits the vector branch
// when the lexical top hit is confident enough, otherwise blends both
// branches via the configured convex combination.
func (e *Engine) hybridSearch(ctx context.Context, sc *queryScope, query string, limit int, wantKind string) ([]*Row, *SemanticDecision, error) {
	lexical, err := e.overlayAwareSearch(ctx, sc, query, limit, wantKind)
	if err != nil {
		return nil, nil, err
	}
	if e.Config.SemanticMode != protocol.SemanticHybrid {
		decision := &SemanticDecision{SkippedReason: "mode_not_hybrid"}
		for _, r := range lexical {
			r.Score = r.BM25Score
		}
		SortDeterministic(lexical)
		return lexical, decision, nil
	}
	if shouldShortCircuit(lexical, e.Config.LexicalShortCircuitThreshold) {
		decision := &SemanticDecision{SkippedReason: "lexical_short_circuit", RatioUsed: e.Config.SemanticRatio}
		for _, r := range lexical {
			r.Score = r.BM25Score
		}
		SortDeterministic(lexical)
		return lexical, decision, nil
	}
	vector, decision, err := e.vectorSearch(ctx, sc, query, limit)
	if err != nil {
		return nil, nil, err
	}
	if !decision.Triggered {
		for _, r := range lexical {
			r.Score = r.BM25Score
		}
		SortDeterministic(lexical)
		return lexical, decision, nil
	}
	blended := blendScores(lexical, vector, e.Config.SemanticRatio)
	return blended, decision, nil
}

// applyPolicy converts rows to policy.Candidate, applies the engine's
// policy config, and maps survivors back onto the (possibly redacted)
// rows in their original relative order.
func (e *Engine) applyPolicy(ctx context.Context, requestedMode protocol.PolicyMode, rows []*Row) ([]*Row, *protocol.PolicyCounters, error) {
	if e.Policy == nil {
		return rows, nil, nil
	}
	candidates := make([]*policy.Candidate, len(rows))
	for i, r := range rows {
		candidates[i] = &policy.Candidate{Path: r.Path, Kind: r.SymbolKind, Content: r.Content}
	}
	verdict, err := e.Policy.Apply(ctx, requestedMode, candidates)
	if err != nil {
		return nil, nil, err
	}
	// verdict.Allowed preserves input order with blocked candidates
	// omitted (policy.Engine.Apply never reorders), so a lockstep walk
	// keyed on the identity-preserving Path+Kind fields (Content may
	// have been redacted) recovers which row each survivor came from.
	out := make([]*Row, 0, len(verdict.Allowed))
	ai := 0
	for _, r := range rows {
		if ai >= len(verdict.Allowed) {
			break
		}
		c := verdict.Allowed[ai]
		if c.Path != r.Path || c.Kind != r.SymbolKind {
			continue
		}
		cp := *r
		cp.Content = c.Content
		out = append(out, &cp)
		ai++
	}
	return out, &protocol.PolicyCounters{BlockedCount: verdict.BlockedCount, RedactedCount: verdict.RedactedCount}, nil
}

// branchStatusFreshness is the degraded fallback used when no
// freshness.Checker was constructed (a store-less Engine, e.g. a unit
// test fixture): it reports syncing while a job is visibly in flight
// and otherwise assumes fresh, without comparing against the VCS HEAD
// or the live filesystem the way checkFreshness does.
func branchStatusFreshness(branch *rs.BranchState) protocol.FreshnessStatus {
	switch branch.Status {
	case rs.BranchSyncing, rs.BranchIndexing, rs.BranchRebuilding:
		return protocol.FreshnessSyncing
	default:
		return protocol.FreshnessFresh
	}
}

// resolveFreshnessPolicy returns requested if it's a recognized policy,
// otherwise the engine's configured default, otherwise best_effort.
func (e *Engine) resolveFreshnessPolicy(requested protocol.FreshnessPolicy) protocol.FreshnessPolicy {
	if _, ok := protocol.ParseFreshnessPolicy(string(requested)); ok {
		return requested
	}
	if e.Config.DefaultFreshnessPolicy != "" {
		return e.Config.DefaultFreshnessPolicy
	}
	return protocol.FreshnessBestEffort
}

// checkFreshness runs the real VCS/manifest staleness comparison and
// its policy-driven outcome for sc's (project, ref). A detection
// failure (e.g. the working tree is transiently unreadable) is logged
// and treated as fresh rather than failing the query outright — the
// freshness check augments a read, it doesn't gate it except under the
// strict policy's documented block.
func (e *Engine) checkFreshness(ctx context.Context, sc *queryScope, requested protocol.FreshnessPolicy) (protocol.FreshnessStatus, protocol.FreshnessPolicy, bool) {
	resolvedPolicy := e.resolveFreshnessPolicy(requested)
	if e.Freshness == nil {
		return branchStatusFreshness(sc.Branch), resolvedPolicy, false
	}
	outcome, err := e.Freshness.Check(ctx, freshness.CheckOptions{
		ProjectID: sc.Project.ID,
		RootPath:  sc.Project.RepoRoot,
		Ref:       sc.ref(),
		VCSMode:   sc.Project.VCSMode,
		DataDir:   e.DataDir,
		Policy:    resolvedPolicy,
	})
	if err != nil {
		slog.WarnContext(ctx, "freshness check failed, proceeding as fresh",
			slog.String("project_id", sc.Project.ID), slog.String("ref", sc.ref()), slog.String("error", err.Error()))
		return protocol.FreshnessFresh, resolvedPolicy, false
	}
	return outcome.Status, resolvedPolicy, outcome.Blocked
}

// readSourceLines reads a contiguous line range from path as of ref:
// a filesystem read for the project's default ref, a git blob read
// (internal/vcsadapter) otherwise, since non-default refs are never
// materialized on disk.
func (e *Engine) readSourceLines(ctx context.Context, sc *queryScope, path string, lineStart, lineEnd int) (string, error) {
	var content []byte
	if sc.Branch.IsDefaultBranch {
		data, err := os.ReadFile(filepath.Join(sc.Project.RepoRoot, path))
		if err != nil {
			return "", ccerrors.IoError("failed to read source file "+path, err)
		}
		content = data
	} else {
		repo, err := vcsadapter.Open(sc.Project.RepoRoot)
		if err != nil {
			return "", err
		}
		data, err := repo.ReadBlob(ctx, sc.ref(), path)
		if err != nil {
			return "", err
		}
		content = data
	}
	lines := strings.Split(string(content), "\n")
	if lineStart < 1 {
		lineStart = 1
	}
	if lineEnd > len(lines) {
		lineEnd = len(lines)
	}
	if lineStart > lineEnd || lineStart > len(lines) {
		return "", nil
	}
	return strings.Join(lines[lineStart-1:lineEnd], "\n"), nil
}
