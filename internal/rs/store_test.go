package rs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProject_UpsertAndGet(t *testing.T) {
	// Given: an empty store
	s := newTestStore(t)
	ctx := context.Background()

	// When: a project is upserted
	p := &Project{ID: "proj1", RepoRoot: "/repo", DefaultRef: "main", VCSMode: true, SchemaVersion: 1, ParserVersion: "v1"}
	require.NoError(t, s.UpsertProject(ctx, p))

	// Then: it can be read back with fields intact
	got, err := s.GetProject(ctx, "proj1")
	require.NoError(t, err)
	assert.Equal(t, "main", got.DefaultRef)
	assert.True(t, got.VCSMode)
}

func TestProject_GetMissing_ReturnsProjectNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetProject(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, ccerrors.KindProjectNotFound, ccerrors.GetKind(err))
}

func TestFiles_UpsertListAndDelete(t *testing.T) {
	// Given: a project with two files
	s := newTestStore(t)
	ctx := context.Background()
	files := []*FileRecord{
		{ProjectID: "p1", Ref: "main", Path: "a.go", ContentHash: "h1", SizeBytes: 10, Language: "go"},
		{ProjectID: "p1", Ref: "main", Path: "b.go", ContentHash: "h2", SizeBytes: 20, Language: "go"},
	}
	require.NoError(t, s.UpsertFiles(ctx, files))

	// When: listing the manifest
	got, err := s.ListManifest(ctx, "p1", "main")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.go", got[0].Path)

	// And: upserting again with a changed hash updates in place
	files[0].ContentHash = "h1-changed"
	require.NoError(t, s.UpsertFiles(ctx, files[:1]))
	updated, err := s.GetFile(ctx, "p1", "main", "a.go")
	require.NoError(t, err)
	assert.Equal(t, "h1-changed", updated.ContentHash)

	// Then: deleting a file removes it from the manifest
	require.NoError(t, s.DeleteFile(ctx, "p1", "main", "a.go"))
	remaining, err := s.ManifestPaths(ctx, "p1", "main")
	require.NoError(t, err)
	_, stillThere := remaining["a.go"]
	assert.False(t, stillThere)
	assert.Len(t, remaining, 1)
}

func TestFiles_GetMissing_ReturnsNilNoError(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetFile(context.Background(), "p1", "main", "missing.go")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteFile_CascadesSymbolsAndEdges(t *testing.T) {
	// Given: a file with a symbol and an edge sourced from it
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertFiles(ctx, []*FileRecord{{ProjectID: "p1", Ref: "main", Path: "a.go"}}))
	require.NoError(t, s.ReplaceSymbolsForFile(ctx, "p1", "main", "a.go", []*SymbolRecord{
		{SymbolID: "sym1", ProjectID: "p1", Ref: "main", Path: "a.go", Kind: "function", Name: "Foo"},
	}))
	require.NoError(t, s.ReplaceEdgesForFile(ctx, "p1", "main", "a.go", []*EdgeRecord{
		{ProjectID: "p1", Ref: "main", FromSymbolID: "sym1", ToName: "Bar", EdgeType: "calls", Confidence: "medium", SourceFile: "a.go"},
	}))

	// When: the file is deleted
	require.NoError(t, s.DeleteFile(ctx, "p1", "main", "a.go"))

	// Then: its symbols and edges are gone too (invariant: file removal cascades)
	sym, err := s.GetSymbol(ctx, "sym1")
	require.NoError(t, err)
	assert.Nil(t, sym)
	edges, err := s.GetEdgesFrom(ctx, "sym1", "")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestSymbols_ReplaceAndSearchByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	syms := []*SymbolRecord{
		{SymbolID: "s1", ProjectID: "p1", Ref: "main", Path: "a.go", Kind: "function", Name: "Handle", QualifiedName: "pkg.Handle"},
		{SymbolID: "s2", ProjectID: "p1", Ref: "main", Path: "b.go", Kind: "function", Name: "Handle", QualifiedName: "pkg2.Handle"},
	}
	require.NoError(t, s.ReplaceSymbolsForFile(ctx, "p1", "main", "a.go", syms[:1]))
	require.NoError(t, s.ReplaceSymbolsForFile(ctx, "p1", "main", "b.go", syms[1:]))

	// When: searching by short name across both files
	found, err := s.SearchSymbolsByName(ctx, "p1", "main", "Handle", 10)
	require.NoError(t, err)

	// Then: both collisions are returned in insertion order
	require.Len(t, found, 2)
	assert.Equal(t, "s1", found[0].SymbolID)
	assert.Equal(t, "s2", found[1].SymbolID)
}

func TestEdges_ResolveTarget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceEdgesForFile(ctx, "p1", "main", "a.go", []*EdgeRecord{
		{ProjectID: "p1", Ref: "main", FromSymbolID: "s1", ToName: "Target", EdgeType: "calls", Confidence: "low", SourceFile: "a.go"},
	}))

	// When: the pipeline's second pass resolves the target
	require.NoError(t, s.ResolveEdgeTarget(ctx, "p1", "main", "Target", "s2", "high", "resolved_internal", 1.0))

	// Then: GetEdgesTo finds it by its resolved ID
	edges, err := s.GetEdgesTo(ctx, "s2", "calls")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "high", edges[0].Confidence)
	assert.Equal(t, "resolved_internal", edges[0].Outcome)
}

func TestJobs_ActiveJobEnforcement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Given: no active job
	active, err := s.GetActiveJob(ctx, "p1", "main")
	require.NoError(t, err)
	assert.Nil(t, active)

	// When: a job is created in the running state
	require.NoError(t, s.CreateJob(ctx, &Job{ID: "job1", ProjectID: "p1", Ref: "main", Status: JobRunning, Mode: "full"}))

	// Then: it is reported as the active job
	active, err = s.GetActiveJob(ctx, "p1", "main")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "job1", active.ID)

	// And: once published, it is no longer active
	require.NoError(t, s.UpdateJobStatus(ctx, "job1", JobPublished, 10, ""))
	active, err = s.GetActiveJob(ctx, "p1", "main")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestJobs_ReconcileInterruptedOnStartup(t *testing.T) {
	// Given: a job left running when the process died
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, &Job{ID: "job1", ProjectID: "p1", Ref: "main", Status: JobRunning}))
	require.NoError(t, s.CreateJob(ctx, &Job{ID: "job2", ProjectID: "p1", Ref: "feature", Status: JobValidating}))
	require.NoError(t, s.CreateJob(ctx, &Job{ID: "job3", ProjectID: "p1", Ref: "old", Status: JobPublished}))

	// When: startup reconciliation runs
	n, err := s.ReconcileInterruptedJobs(ctx)
	require.NoError(t, err)

	// Then: only the non-terminal jobs are marked interrupted
	assert.Equal(t, 2, n)
	j1, err := s.GetJob(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, JobInterrupted, j1.Status)
	j3, err := s.GetJob(ctx, "job3")
	require.NoError(t, err)
	assert.Equal(t, JobPublished, j3.Status)
}

func TestBranchState_UpsertAndLegacyNormalization(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBranchState(ctx, &BranchState{ProjectID: "p1", Ref: "main", Status: BranchActive, IsDefaultBranch: true}))
	got, err := s.GetBranchState(ctx, "p1", "main")
	require.NoError(t, err)
	assert.Equal(t, BranchActive, got.Status)
	assert.True(t, got.IsDefaultBranch)

	// When: a legacy status string is written directly (simulating an
	// older schema version's row)
	_, err = s.db.ExecContext(ctx, `UPDATE branch_state SET status = 'partial_available' WHERE project_id = ? AND ref = ?`, "p1", "main")
	require.NoError(t, err)

	// Then: it is normalized to "ready" on read
	got, err = s.GetBranchState(ctx, "p1", "main")
	require.NoError(t, err)
	assert.Equal(t, BranchReady, got.Status)
}

func TestTombstones_UpsertClearAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTombstones(ctx, "p1", "feature", []string{"deleted.go", "gone.go"}))
	got, err := s.ListTombstones(ctx, "p1", "feature")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"deleted.go", "gone.go"}, got)

	// When: a tombstoned path reappears (e.g. restored on a later commit)
	require.NoError(t, s.ClearTombstone(ctx, "p1", "feature", "deleted.go"))
	got, err = s.ListTombstones(ctx, "p1", "feature")
	require.NoError(t, err)
	assert.Equal(t, []string{"gone.go"}, got)
}

func TestWorkspaces_RegisterAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterWorkspace(ctx, &Workspace{Path: "/repo", ProjectID: "p1", Allowed: true}))
	got, err := s.GetWorkspace(ctx, "/repo")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Allowed)

	all, err := s.ListWorkspaces(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWithSavepoint_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertFiles(ctx, []*FileRecord{{ProjectID: "p1", Ref: "main", Path: "a.go"}}))

	boom := assert.AnError
	err := s.WithSavepoint(ctx, func(ctx context.Context) error {
		if _, execErr := s.db.ExecContext(ctx, `DELETE FROM file_manifest WHERE project_id = 'p1'`); execErr != nil {
			return execErr
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Then: the delete inside the failed savepoint was rolled back
	files, err := s.ListManifest(ctx, "p1", "main")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
