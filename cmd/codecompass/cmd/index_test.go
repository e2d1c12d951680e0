package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexCmd_OfflineEmptyDir_Succeeds(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := newIndexCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--path", tmpDir, "--offline"})

	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(tmpDir, ".codecompass", "state.db"))
	assert.NoError(t, err)
}

func TestIndexCmd_JobIDFromEnv_IsHonored(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv(cruxeJobIDEnv, "job-from-env")

	cmd := newIndexCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--path", tmpDir, "--offline"})

	require.NoError(t, cmd.Execute())
}

func TestIndexCmd_NonexistentPath_ReturnsError(t *testing.T) {
	cmd := newIndexCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--path", filepath.Join(t.TempDir(), "missing")})

	assert.Error(t, cmd.Execute())
}
