package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireJobLock_SecondAcquireFailsUntilReleased(t *testing.T) {
	dataDir := t.TempDir()

	lock, err := AcquireJobLock(dataDir, "proj1", "main")
	require.NoError(t, err)

	_, err = AcquireJobLock(dataDir, "proj1", "main")
	assert.Error(t, err)

	require.NoError(t, lock.Release())

	lock2, err := AcquireJobLock(dataDir, "proj1", "main")
	require.NoError(t, err)
	assert.NoError(t, lock2.Release())
}

func TestAcquireJobLock_DifferentRefsDoNotContend(t *testing.T) {
	dataDir := t.TempDir()

	lockMain, err := AcquireJobLock(dataDir, "proj1", "main")
	require.NoError(t, err)
	defer lockMain.Release()

	lockFeature, err := AcquireJobLock(dataDir, "proj1", "feature/x")
	require.NoError(t, err)
	defer lockFeature.Release()
}
