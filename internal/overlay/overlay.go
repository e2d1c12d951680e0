// Package overlay implements the per-ref overlay engine: for non-default refs in VCS mode, symbols/snippets/files are
// indexed into a second, dedicated LI set and into RS under
// ref = target_ref, computed as a delta against the shared default-ref
// base via merge-base diffing, with tombstones marking base paths
// absent on the target ref.
package overlay

import (
	"context"
	"os"
	"strings"

	"github.com/signalridge/codecompass/internal/chunkextract"
	ccerrors "github.com/signalridge/codecompass/internal/errors"
	"github.com/signalridge/codecompass/internal/ids"
	"github.com/signalridge/codecompass/internal/li"
	"github.com/signalridge/codecompass/internal/rs"
	"github.com/signalridge/codecompass/internal/scanner"
	"github.com/signalridge/codecompass/internal/vcsadapter"
)

const contentHeadBytes = 512

// Engine bootstraps and incrementally syncs per-ref overlays.
type Engine struct {
	RS        *rs.Store
	DataDir   string
	Parser    *chunkextract.Parser
	Extractor *chunkextract.Extractor
}

// New builds an overlay Engine sharing RS with the indexing pipeline.
func New(store *rs.Store, dataDir string) *Engine {
	return &Engine{
		RS:        store,
		DataDir:   dataDir,
		Parser:    chunkextract.NewParser(),
		Extractor: chunkextract.NewExtractor(),
	}
}

// SyncOptions identifies the repository and the (default, target) ref
// pair an overlay is synced against.
type SyncOptions struct {
	ProjectID  string
	RepoRoot   string
	DefaultRef string
	TargetRef  string
}

// SyncResult summarizes one bootstrap or incremental sync.
type SyncResult struct {
	OverlayDir      string
	HeadCommit      string
	MergeBaseCommit string
	FilesChanged    int
	FilesDeleted    int
	Rebuilt         bool
}

// Sync bootstraps the overlay for opts.TargetRef if it has never been
// synced, rebuilds it from scratch if the merge base has shifted
// (rebase/force-push), or otherwise runs an incremental diff from the
// last indexed commit.
func (e *Engine) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	repo, err := vcsadapter.Open(opts.RepoRoot)
	if err != nil {
		return nil, err
	}

	headCommit, err := repo.ResolveRef(ctx, opts.TargetRef)
	if err != nil {
		return nil, err
	}
	mergeBase, err := repo.MergeBase(ctx, opts.DefaultRef, opts.TargetRef)
	if err != nil {
		return nil, err
	}

	overlayDir, err := Dir(e.DataDir, opts.ProjectID, opts.TargetRef)
	if err != nil {
		return nil, err
	}

	existing, err := e.RS.GetBranchState(ctx, opts.ProjectID, opts.TargetRef)
	if err != nil {
		return nil, err
	}

	rebuild := existing == nil || existing.MergeBaseCommit != mergeBase
	fromRef := mergeBase
	if !rebuild && existing.LastIndexedCommit != "" {
		fromRef = existing.LastIndexedCommit
	}

	if rebuild {
		if err := e.RS.WipeRef(ctx, opts.ProjectID, opts.TargetRef); err != nil {
			return nil, err
		}
		if err := e.RS.ClearAllTombstones(ctx, opts.ProjectID, opts.TargetRef); err != nil {
			return nil, err
		}
		if err := os.RemoveAll(overlayDir); err != nil {
			return nil, ccerrors.IoError("failed to clear overlay directory", err)
		}
	}

	liSet, err := li.Open(overlayDir)
	if err != nil {
		return nil, err
	}
	defer liSet.Close()

	changes, err := repo.DiffNameStatus(ctx, fromRef, headCommit)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{OverlayDir: overlayDir, HeadCommit: headCommit, MergeBaseCommit: mergeBase, Rebuilt: rebuild}
	for _, c := range changes {
		switch c.Kind {
		case vcsadapter.ChangeAdded, vcsadapter.ChangeModified:
			if err := e.syncPath(ctx, liSet, repo, opts, headCommit, c.Path); err != nil {
				return nil, err
			}
			if err := e.RS.ClearTombstone(ctx, opts.ProjectID, opts.TargetRef, c.Path); err != nil {
				return nil, err
			}
			result.FilesChanged++
		case vcsadapter.ChangeDeleted:
			if err := e.removePath(ctx, liSet, opts, c.Path); err != nil {
				return nil, err
			}
			if err := e.RS.UpsertTombstones(ctx, opts.ProjectID, opts.TargetRef, []string{c.Path}); err != nil {
				return nil, err
			}
			result.FilesDeleted++
		case vcsadapter.ChangeRenamed:
			if c.OldPath != "" {
				if err := e.removePath(ctx, liSet, opts, c.OldPath); err != nil {
					return nil, err
				}
				if err := e.RS.UpsertTombstones(ctx, opts.ProjectID, opts.TargetRef, []string{c.OldPath}); err != nil {
					return nil, err
				}
			}
			if err := e.syncPath(ctx, liSet, repo, opts, headCommit, c.Path); err != nil {
				return nil, err
			}
			result.FilesChanged++
		}
	}

	fileCount, symbolCount, err := e.countManifest(ctx, opts.ProjectID, opts.TargetRef)
	if err != nil {
		return nil, err
	}
	if err := e.RS.UpsertBranchState(ctx, &rs.BranchState{
		ProjectID:         opts.ProjectID,
		Ref:               opts.TargetRef,
		LastIndexedCommit: headCommit,
		MergeBaseCommit:   mergeBase,
		OverlayDir:        overlayDir,
		IsDefaultBranch:   false,
		Status:            rs.BranchActive,
		FileCount:         fileCount,
		SymbolCount:       symbolCount,
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// syncPath runs the full extract pipeline against path's content at
// headCommit and writes the result into the overlay LI set and RS
// under ref = TargetRef.
func (e *Engine) syncPath(ctx context.Context, liSet *li.Set, repo *vcsadapter.Repository, opts SyncOptions, headCommit, path string) error {
	data, err := repo.ReadBlob(ctx, headCommit, path)
	if err != nil {
		return err
	}
	language := scanner.DetectLanguage(path)
	contentHash := ids.ContentHash(data)

	if err := liSet.DeleteByPath(ctx, opts.ProjectID, opts.TargetRef, path); err != nil {
		return err
	}

	var symbols []*rs.SymbolRecord
	var edges []*rs.EdgeRecord
	var symbolDocs []*li.SymbolDoc
	var snippetDocs []*li.SnippetDoc

	tree, err := e.Parser.Parse(ctx, data, language)
	if err == nil {
		symbols = e.Extractor.ExtractSymbols(tree, opts.ProjectID, opts.TargetRef, path)
		callEdges := e.Extractor.ExtractCallEdges(tree, opts.ProjectID, opts.TargetRef, path, symbols)
		importEdges := e.Extractor.ExtractImportEdges(tree, opts.ProjectID, opts.TargetRef, path,
			ids.HashHex16(opts.ProjectID, opts.TargetRef, path, "file"))
		edges = append(callEdges, importEdges...)
		lines := strings.Split(string(data), "\n")
		for _, sym := range symbols {
			symbolDocs = append(symbolDocs, &li.SymbolDoc{
				SymbolID: sym.SymbolID, ProjectID: sym.ProjectID, Ref: sym.Ref, Path: sym.Path,
				Kind: sym.Kind, QualifiedName: sym.QualifiedName, Name: sym.Name,
				Signature: sym.Signature, Language: sym.Language,
			})
			snippetDocs = append(snippetDocs, &li.SnippetDoc{
				SymbolID: sym.SymbolID, ProjectID: sym.ProjectID, Ref: sym.Ref, Path: sym.Path,
				Content: bodyOf(lines, sym.LineStart, sym.LineEnd), Language: sym.Language,
				LineStart: sym.LineStart, LineEnd: sym.LineEnd,
			})
		}
	}

	if err := e.RS.ReplaceSymbolsForFile(ctx, opts.ProjectID, opts.TargetRef, path, symbols); err != nil {
		return err
	}
	if err := e.RS.ReplaceEdgesForFile(ctx, opts.ProjectID, opts.TargetRef, path, edges); err != nil {
		return err
	}
	if err := e.RS.UpsertFiles(ctx, []*rs.FileRecord{{
		ProjectID: opts.ProjectID, Ref: opts.TargetRef, Path: path,
		ContentHash: contentHash, SizeBytes: int64(len(data)), Language: language,
		ContentHead: headOf(data, contentHeadBytes),
	}}); err != nil {
		return err
	}
	if len(symbolDocs) > 0 {
		if err := liSet.IndexSymbols(ctx, symbolDocs); err != nil {
			return err
		}
	}
	if len(snippetDocs) > 0 {
		if err := liSet.IndexSnippets(ctx, snippetDocs); err != nil {
			return err
		}
	}
	return liSet.IndexFiles(ctx, []*li.FileDoc{{
		ProjectID: opts.ProjectID, Ref: opts.TargetRef, Path: path,
		Language: language, ContentHead: headOf(data, contentHeadBytes),
	}})
}

// removePath purges an overlay entry for a deleted or renamed-away path
//. Edges sourced from the path are
// cleared too; tombstone insertion itself is the caller's
// responsibility.
func (e *Engine) removePath(ctx context.Context, liSet *li.Set, opts SyncOptions, path string) error {
	if err := liSet.DeleteByPath(ctx, opts.ProjectID, opts.TargetRef, path); err != nil {
		return err
	}
	if err := e.RS.ReplaceEdgesForFile(ctx, opts.ProjectID, opts.TargetRef, path, nil); err != nil {
		return err
	}
	return e.RS.DeleteFile(ctx, opts.ProjectID, opts.TargetRef, path)
}

func (e *Engine) countManifest(ctx context.Context, projectID, ref string) (int, int, error) {
	manifest, err := e.RS.ListManifest(ctx, projectID, ref)
	if err != nil {
		return 0, 0, err
	}
	symbols, err := e.RS.ListSymbolsForRef(ctx, projectID, ref)
	if err != nil {
		return 0, 0, err
	}
	return len(manifest), len(symbols), nil
}

func headOf(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n])
}

func bodyOf(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end || start > len(lines) {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
