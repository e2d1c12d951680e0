package overlay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalridge/codecompass/internal/rs"
)

var sig = &object.Signature{Name: "test", Email: "test@example.com"}

// initRepoWithBranch builds a repo with one file on main, then branches
// off "feature" and modifies it there.
func initRepoWithBranch(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}

	write("shared.go", "package sample\n\nfunc Shared(x int) int {\n\treturn x\n}\n")
	_, err = wt.Commit("initial", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	headRef, err := repo.Head()
	require.NoError(t, err)
	branchRef := plumbing.NewBranchReferenceName("feature")
	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(branchRef, headRef.Hash())))
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Branch: branchRef}))

	write("shared.go", "package sample\n\nfunc Shared(x, mode int) int {\n\treturn x + mode\n}\n")
	_, err = wt.Commit("modify signature", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	write("new_feature.go", "package sample\n\nfunc OnlyOnFeature() {}\n")
	_, err = wt.Commit("add feature file", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Branch: plumbing.Master}))

	return dir
}

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	store, err := rs.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	dataDir := t.TempDir()
	return New(store, dataDir), dataDir
}

func TestSync_Bootstrap_WritesOverlayAndTombstonesNothing(t *testing.T) {
	repoDir := initRepoWithBranch(t)
	e, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := e.Sync(ctx, SyncOptions{
		ProjectID: "proj1", RepoRoot: repoDir, DefaultRef: "master", TargetRef: "feature",
	})
	require.NoError(t, err)

	assert.True(t, result.Rebuilt)
	assert.Equal(t, 2, result.FilesChanged) // shared.go modified + new_feature.go added

	syms, err := e.RS.ListSymbolsForRef(ctx, "proj1", "feature")
	require.NoError(t, err)
	var found bool
	for _, s := range syms {
		if s.Name == "Shared" {
			found = true
			assert.Contains(t, s.Signature, "mode")
		}
	}
	assert.True(t, found, "expected Shared symbol with modified signature on overlay ref")

	branch, err := e.RS.GetBranchState(ctx, "proj1", "feature")
	require.NoError(t, err)
	require.NotNil(t, branch)
	assert.Equal(t, result.HeadCommit, branch.LastIndexedCommit)
	assert.Equal(t, result.MergeBaseCommit, branch.MergeBaseCommit)
}

func TestSync_Rerun_WithNoNewCommits_IsIncrementalNoOp(t *testing.T) {
	repoDir := initRepoWithBranch(t)
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Sync(ctx, SyncOptions{ProjectID: "proj1", RepoRoot: repoDir, DefaultRef: "master", TargetRef: "feature"})
	require.NoError(t, err)

	result, err := e.Sync(ctx, SyncOptions{ProjectID: "proj1", RepoRoot: repoDir, DefaultRef: "master", TargetRef: "feature"})
	require.NoError(t, err)

	assert.False(t, result.Rebuilt)
	assert.Zero(t, result.FilesChanged)
	assert.Zero(t, result.FilesDeleted)
}

func TestDir_RejectsPathEscapingDataDir(t *testing.T) {
	_, err := Dir("/data", "../escape", "main")
	require.Error(t, err)
}

func TestDir_IsStableForSameRef(t *testing.T) {
	a, err := Dir("/data", "proj1", "feature/x")
	require.NoError(t, err)
	b, err := Dir("/data", "proj1", "feature/x")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
