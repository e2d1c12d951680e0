package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalridge/codecompass/internal/rs"
)

func newTestStore(t *testing.T) *rs.Store {
	t.Helper()
	store, err := rs.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCheck_NoProjects_ReportsOKWithEmptyFleet(t *testing.T) {
	store := newTestStore(t)
	c := New(store, nil, "", time.Minute)

	payload, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", payload.Status)
	assert.Empty(t, payload.Projects)
	assert.Zero(t, payload.InterruptedJobs)
}

func TestCheck_InterruptedJob_MarksPayloadDegraded(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.UpsertProject(ctx, &rs.Project{ID: "p1", RepoRoot: "/tmp/p1", DefaultRef: "main"}))
	require.NoError(t, store.UpsertBranchState(ctx, &rs.BranchState{ProjectID: "p1", Ref: "main", IsDefaultBranch: true, Status: rs.BranchReady}))
	require.NoError(t, store.CreateJob(ctx, &rs.Job{ID: "job1", ProjectID: "p1", Ref: "main", Status: rs.JobRunning, Mode: "full"}))
	_, err := store.ReconcileInterruptedJobs(ctx)
	require.NoError(t, err)

	c := New(store, nil, "", time.Minute)
	payload, err := c.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, "degraded", payload.Status)
	assert.Equal(t, 1, payload.InterruptedJobs)
	require.Len(t, payload.Projects, 1)
	require.Len(t, payload.Projects[0].Branches, 1)
	assert.Equal(t, rs.JobInterrupted, payload.Projects[0].Branches[0].ActiveJobStatus)
}

func TestCheck_ResultIsCachedWithinTTL(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	c := New(store, nil, "", time.Hour)

	first, err := c.Check(ctx)
	require.NoError(t, err)

	require.NoError(t, store.UpsertProject(ctx, &rs.Project{ID: "p2", RepoRoot: "/tmp/p2", DefaultRef: "main"}))

	second, err := c.Check(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second, "a second Check within the TTL window should return the identical cached payload")
}

func TestCheck_ResultRefreshesAfterTTLExpires(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	c := New(store, nil, "", time.Millisecond)

	first, err := c.Check(ctx)
	require.NoError(t, err)

	require.NoError(t, store.UpsertProject(ctx, &rs.Project{ID: "p3", RepoRoot: "/tmp/p3", DefaultRef: "main"}))
	time.Sleep(5 * time.Millisecond)

	second, err := c.Check(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Len(t, second.Projects, 1)
}
