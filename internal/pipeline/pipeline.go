// Package pipeline implements the indexing pipeline: scan, parallel
// prepare, sequential write, second-pass resolution, and publish.
// It is the only component that writes to RS, LI, and
// VS together; every other component reads.
package pipeline

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/signalridge/codecompass/internal/chunkextract"
	ccerrors "github.com/signalridge/codecompass/internal/errors"
	"github.com/signalridge/codecompass/internal/ids"
	"github.com/signalridge/codecompass/internal/li"
	"github.com/signalridge/codecompass/internal/rs"
	"github.com/signalridge/codecompass/internal/scanner"
	"github.com/signalridge/codecompass/internal/vs"
)

// Mode selects full vs. incremental indexing.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// DefaultMaxFileSize matches the reference scanner default ceiling.
const DefaultMaxFileSize = 10 * 1024 * 1024

// progressFlushInterval is how often (in files) RS progress counters
// are auto-committed during the write stage.
const progressFlushInterval = 100

// Options configures one indexing run.
type Options struct {
	ProjectID   string
	RootPath    string
	DataDir     string // base dir for the advisory job lock; empty disables locking
	Ref         string
	Languages   []string // empty = all languages the registry knows
	MaxFileSize int64
	Mode        Mode
	Force       bool // ignore content-hash short-circuit
	Workers     int  // 0 = runtime.NumCPU(), overridable by CODECOMPASS_INDEX_WORKERS
	JobID       string
}

// Result summarizes a completed run.
type Result struct {
	JobID         string
	FilesScanned  int
	FilesChanged  []string
	FilesRemoved  []string
	SymbolCount   int
	Warnings      []string
}

// Pipeline wires the scanner, parser/extractor, and the three write
// targets (RS, LI, VS) together.
type Pipeline struct {
	RS        *rs.Store
	LI        *li.Set
	VS        vs.Store // nil disables the vector-write stage
	Embedder  Embedder // nil disables the vector-write stage
	Scanner   *scanner.Scanner
	Parser    *chunkextract.Parser
	Extractor *chunkextract.Extractor
}

// New builds a Pipeline from already-open stores.
func New(store *rs.Store, liSet *li.Set, vectorStore vs.Store, embedder Embedder) (*Pipeline, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, ccerrors.IoError("failed to construct scanner", err)
	}
	return &Pipeline{
		RS:        store,
		LI:        liSet,
		VS:        vectorStore,
		Embedder:  embedder,
		Scanner:   sc,
		Parser:    chunkextract.NewParser(),
		Extractor: chunkextract.NewExtractor(),
	}, nil
}

func resolveWorkers(requested int) int {
	if requested > 0 {
		return requested
	}
	if v := os.Getenv("CODECOMPASS_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// preparedFile is the per-file write set produced by the parallel
// prepare stage.
type preparedFile struct {
	path        string
	relPath     string
	language    string
	contentHash string
	sizeBytes   int64
	contentHead string
	unchanged   bool
	parseError  string

	symbols      []*rs.SymbolRecord
	edges        []*rs.EdgeRecord
	symbolDocs   []*li.SymbolDoc
	snippetDocs  []*li.SnippetDoc
	fileDoc      *li.FileDoc
}

// Run executes a full indexing job end to end: scan, prepare, write,
// resolve, publish. Exactly one active job per
// (project, ref) is enforced via RS.GetActiveJob before the job row is
// created.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Ref == "" {
		opts.Ref = "live"
	}
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}

	active, err := p.RS.GetActiveJob(ctx, opts.ProjectID, opts.Ref)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ccerrors.New(ccerrors.KindInvalidInput,
			"an indexing job is already active for this (project, ref)", nil).
			WithDetail("job_id", active.ID)
	}

	if opts.DataDir != "" {
		lock, err := AcquireJobLock(opts.DataDir, opts.ProjectID, opts.Ref)
		if err != nil {
			return nil, err
		}
		defer func() { _ = lock.Release() }()
	}

	jobID := opts.JobID
	if jobID == "" {
		jobID = newJobID(opts.ProjectID, opts.Ref)
	}
	job := &rs.Job{ID: jobID, ProjectID: opts.ProjectID, Ref: opts.Ref, Status: rs.JobQueued, Mode: string(opts.Mode)}
	if err := p.RS.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := p.RS.UpdateJobStatus(ctx, jobID, rs.JobRunning, 0, ""); err != nil {
		return nil, err
	}
	if err := p.RS.UpsertBranchState(ctx, &rs.BranchState{
		ProjectID: opts.ProjectID, Ref: opts.Ref, Status: rs.BranchIndexing,
	}); err != nil {
		return nil, err
	}

	result, runErr := p.run(ctx, opts, jobID)
	if runErr != nil {
		_ = p.RS.UpdateJobStatus(ctx, jobID, rs.JobFailed, result.filesProcessed(), runErr.Error())
		return nil, runErr
	}
	return result.toResult(jobID), nil
}

// internal mutable accumulator, kept distinct from the public Result so
// zero-value handling on early errors stays simple.
type runState struct {
	filesScanned int
	changed      []string
	removed      []string
	symbolCount  int
	warnings     []string
	mu           sync.Mutex
}

func (r *runState) filesProcessed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changed)
}

func (r *runState) toResult(jobID string) *Result {
	return &Result{
		JobID:        jobID,
		FilesScanned: r.filesScanned,
		FilesChanged: r.changed,
		FilesRemoved: r.removed,
		SymbolCount:  r.symbolCount,
		Warnings:     r.warnings,
	}
}

func (p *Pipeline) run(ctx context.Context, opts Options, jobID string) (*runState, error) {
	state := &runState{}

	// Stage 1: scan.
	files, err := p.scan(ctx, opts)
	if err != nil {
		return state, err
	}
	state.filesScanned = len(files)

	previousManifest, err := p.RS.ManifestPaths(ctx, opts.ProjectID, opts.Ref)
	if err != nil {
		return state, err
	}
	seen := make(map[string]struct{}, len(files))

	// Stage 2: parallel prepare.
	workers := resolveWorkers(opts.Workers)
	prepared := make([]*preparedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			pf, err := p.prepareFile(gctx, opts, f)
			if err != nil {
				return err
			}
			prepared[i] = pf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return state, err
	}

	// Stage 3: sequential write. Progress is auto-committed (no
	// savepoint wrapping the whole batch) so concurrent status polls
	// see advancement while the job runs.
	processed := 0
	for _, pf := range prepared {
		if pf == nil {
			continue
		}
		seen[pf.relPath] = struct{}{}
		if pf.parseError != "" {
			state.mu.Lock()
			state.warnings = append(state.warnings, pf.relPath+": "+pf.parseError)
			state.mu.Unlock()
		}
		if pf.unchanged && !opts.Force {
			processed++
			continue
		}
		if err := p.writeFile(ctx, opts, pf); err != nil {
			return state, err
		}
		state.mu.Lock()
		state.changed = append(state.changed, pf.relPath)
		state.symbolCount += len(pf.symbols)
		state.mu.Unlock()
		processed++
		if processed%progressFlushInterval == 0 {
			_ = p.RS.UpdateJobStatus(ctx, jobID, rs.JobRunning, processed, "")
		}
	}
	_ = p.RS.UpdateJobStatus(ctx, jobID, rs.JobRunning, processed, "")

	// Removals: files present in the previous manifest but absent from
	// this scan are fully purged.
	for path := range previousManifest {
		if _, ok := seen[path]; ok {
			continue
		}
		if err := p.removeFile(ctx, opts.ProjectID, opts.Ref, path); err != nil {
			return state, err
		}
		state.mu.Lock()
		state.removed = append(state.removed, path)
		state.mu.Unlock()
	}
	sort.Strings(state.changed)
	sort.Strings(state.removed)

	// Stage 4: second-pass resolution.
	if err := p.RS.UpdateJobStatus(ctx, jobID, rs.JobValidating, processed, ""); err != nil {
		return state, err
	}
	if err := p.resolveEdges(ctx, opts); err != nil {
		return state, err
	}

	// Stage 5: publish.
	if err := p.LI.CommitAll(); err != nil {
		return state, ccerrors.Wrap(ccerrors.KindSqlite, err)
	}
	fileCount, symbolCount, err := p.countManifest(ctx, opts)
	if err != nil {
		return state, err
	}
	if err := p.RS.UpsertBranchState(ctx, &rs.BranchState{
		ProjectID:   opts.ProjectID,
		Ref:         opts.Ref,
		Status:      rs.BranchActive,
		FileCount:   fileCount,
		SymbolCount: symbolCount,
	}); err != nil {
		return state, err
	}
	if err := p.RS.UpdateJobStatus(ctx, jobID, rs.JobPublished, processed, ""); err != nil {
		return state, err
	}

	slog.Info("indexing job published",
		"job_id", jobID, "project_id", opts.ProjectID, "ref", opts.Ref,
		"files_changed", len(state.changed), "files_removed", len(state.removed),
		"symbol_count", state.symbolCount)

	return state, nil
}

func (p *Pipeline) countManifest(ctx context.Context, opts Options) (int, int, error) {
	manifest, err := p.RS.ListManifest(ctx, opts.ProjectID, opts.Ref)
	if err != nil {
		return 0, 0, err
	}
	symbols, err := p.RS.ListSymbolsForRef(ctx, opts.ProjectID, opts.Ref)
	if err != nil {
		return 0, 0, err
	}
	return len(manifest), len(symbols), nil
}

func (p *Pipeline) scan(ctx context.Context, opts Options) ([]*scanner.FileInfo, error) {
	excludes := loadCruxeignore(opts.RootPath)
	scanOpts := &scanner.ScanOptions{
		RootDir:          opts.RootPath,
		ExcludePatterns:  excludes,
		RespectGitignore: true,
		MaxFileSize:      opts.MaxFileSize,
	}
	results, err := p.Scanner.Scan(ctx, scanOpts)
	if err != nil {
		return nil, ccerrors.IoError("scan failed", err)
	}
	var files []*scanner.FileInfo
	for r := range results {
		if r.Error != nil {
			continue
		}
		if len(opts.Languages) > 0 && !containsLang(opts.Languages, r.File.Language) {
			continue
		}
		files = append(files, r.File)
	}
	return files, nil
}

func containsLang(allow []string, lang string) bool {
	for _, l := range allow {
		if l == lang {
			return true
		}
	}
	return false
}

// loadCruxeignore reads a .cruxeignore file at the workspace root and
// returns its non-comment, non-blank lines as extra exclude patterns,
// on top of the scanner's normal .gitignore handling.
func loadCruxeignore(root string) []string {
	f, err := os.Open(filepath.Join(root, ".cruxeignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

func newJobID(projectID, ref string) string {
	h := sha256.Sum256([]byte(projectID + "|" + ref + "|" + time.Now().UTC().Format(time.RFC3339Nano)))
	return "job_" + hex.EncodeToString(h[:])[:16]
}
