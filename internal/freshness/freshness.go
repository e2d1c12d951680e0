// Package freshness implements the pre-query staleness check and its
// policy-driven outcome: VCS-mode HEAD comparison for
// projects tracked by git, size/mtime/path-set comparison for
// single-version mode, and an async sync trigger under the balanced
// policy.
package freshness

import (
	"context"
	"os"
	"sync"

	"github.com/signalridge/codecompass/internal/protocol"
	"github.com/signalridge/codecompass/internal/rs"
	"github.com/signalridge/codecompass/internal/scanner"
	"github.com/signalridge/codecompass/internal/vcsadapter"
)

// Outcome is the result of a freshness check plus the policy-driven
// action taken on it.
type Outcome struct {
	Status  protocol.FreshnessStatus
	Proceed bool
	Blocked bool // strict + stale: the caller must surface StaleIndex
	SyncFired bool
}

// Indexer is the subset of internal/pipeline.Pipeline the async-sync
// trigger needs, kept narrow so this package never imports pipeline
// directly (pipeline already imports rs/li/vs; freshness stays a leaf
// dependency of the retrieval engine).
type Indexer interface {
	Run(ctx context.Context, opts IndexOptions) error
}

// IndexOptions mirrors the handful of pipeline.Options fields the async
// sync trigger needs to populate.
type IndexOptions struct {
	ProjectID string
	RootPath  string
	Ref       string
	DataDir   string
}

// Checker runs freshness checks and, under the balanced policy, fires
// a collapsed async sync per (project_id, ref).
type Checker struct {
	RS      *rs.Store
	Indexer Indexer

	syncing sync.Map // key: projectID+"|"+ref -> struct{}{}
}

// New builds a Checker. indexer may be nil if async sync is disabled
// (e.g. a read-only retrieval-only deployment).
func New(store *rs.Store, indexer Indexer) *Checker {
	return &Checker{RS: store, Indexer: indexer}
}

// Check runs the appropriate staleness comparison for the project and
// applies the configured freshness policy's outcome table.
func (c *Checker) Check(ctx context.Context, opts CheckOptions) (*Outcome, error) {
	active, err := c.RS.GetActiveJob(ctx, opts.ProjectID, opts.Ref)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return c.applyPolicy(ctx, opts, protocol.FreshnessSyncing)
	}

	status, err := c.detectStatus(ctx, opts)
	if err != nil {
		return nil, err
	}
	return c.applyPolicy(ctx, opts, status)
}

// CheckOptions parameterizes one freshness check.
type CheckOptions struct {
	ProjectID string
	RootPath  string // required for single-version mode
	Ref       string
	VCSMode   bool
	DataDir   string // required to fire an async sync
	Policy    protocol.FreshnessPolicy
}

func (c *Checker) detectStatus(ctx context.Context, opts CheckOptions) (protocol.FreshnessStatus, error) {
	branch, err := c.RS.GetBranchState(ctx, opts.ProjectID, opts.Ref)
	if err != nil {
		return "", err
	}
	if branch == nil {
		return protocol.FreshnessStale, nil
	}

	if opts.VCSMode {
		return c.detectVCSStatus(ctx, opts, branch)
	}
	return c.detectManifestStatus(ctx, opts)
}

// detectVCSStatus compares branch_state.last_indexed_commit against the
// current HEAD of opts.Ref. A ref that cannot be resolved in the
// working tree (off-branch query) is treated as fresh, since there is
// nothing to compare against.
func (c *Checker) detectVCSStatus(ctx context.Context, opts CheckOptions, branch *rs.BranchState) (protocol.FreshnessStatus, error) {
	repo, err := vcsadapter.Open(opts.RootPath)
	if err != nil {
		return protocol.FreshnessFresh, nil
	}
	head, err := repo.ResolveRef(ctx, opts.Ref)
	if err != nil {
		return protocol.FreshnessFresh, nil
	}
	if head != branch.LastIndexedCommit {
		return protocol.FreshnessStale, nil
	}
	return protocol.FreshnessFresh, nil
}

// detectManifestStatus compares the RS manifest against the live
// filesystem by size/mtime and path-set only — no file content is
// read.
func (c *Checker) detectManifestStatus(ctx context.Context, opts CheckOptions) (protocol.FreshnessStatus, error) {
	manifest, err := c.RS.ListManifest(ctx, opts.ProjectID, opts.Ref)
	if err != nil {
		return "", err
	}
	indexed := make(map[string]*rs.FileRecord, len(manifest))
	for _, f := range manifest {
		indexed[f.Path] = f
	}

	sc, err := scanner.New()
	if err != nil {
		return "", err
	}
	results, err := sc.Scan(ctx, &scanner.ScanOptions{RootDir: opts.RootPath, RespectGitignore: true})
	if err != nil {
		return "", err
	}

	seen := make(map[string]struct{}, len(manifest))
	for r := range results {
		if r.Error != nil || r.File == nil {
			continue
		}
		seen[r.File.Path] = struct{}{}
		f, ok := indexed[r.File.Path]
		if !ok {
			return protocol.FreshnessStale, nil // new indexable path since last index
		}
		info, err := os.Stat(r.File.AbsPath)
		if err != nil {
			continue
		}
		if info.Size() != f.SizeBytes {
			return protocol.FreshnessStale, nil
		}
		if f.MTimeNanos != 0 && info.ModTime().UnixNano() != f.MTimeNanos {
			return protocol.FreshnessStale, nil
		}
	}
	if len(seen) != len(manifest) {
		return protocol.FreshnessStale, nil // a manifested path disappeared
	}
	return protocol.FreshnessFresh, nil
}

func (c *Checker) applyPolicy(ctx context.Context, opts CheckOptions, status protocol.FreshnessStatus) (*Outcome, error) {
	out := &Outcome{Status: status}
	switch status {
	case protocol.FreshnessFresh:
		out.Proceed = true
		return out, nil
	case protocol.FreshnessSyncing:
		out.Proceed = true
		return out, nil
	case protocol.FreshnessStale:
		switch opts.Policy {
		case protocol.FreshnessStrict:
			out.Blocked = true
			out.Proceed = false
		case protocol.FreshnessBalanced:
			out.Proceed = true
			out.SyncFired = c.fireAsyncSync(opts)
		case protocol.FreshnessBestEffort:
			out.Proceed = true
		default:
			out.Proceed = true
		}
		return out, nil
	default:
		out.Proceed = true
		return out, nil
	}
}

// fireAsyncSync launches the indexing pipeline as a detached goroutine
// for (project_id, ref), collapsing concurrent triggers for the same
// key to a single in-flight run.
func (c *Checker) fireAsyncSync(opts CheckOptions) bool {
	if c.Indexer == nil {
		return false
	}
	key := opts.ProjectID + "|" + opts.Ref
	if _, already := c.syncing.LoadOrStore(key, struct{}{}); already {
		return false
	}
	go func() {
		defer c.syncing.Delete(key)
		_ = c.Indexer.Run(context.Background(), IndexOptions{
			ProjectID: opts.ProjectID, RootPath: opts.RootPath, Ref: opts.Ref, DataDir: opts.DataDir,
		})
	}()
	return true
}
