package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCmd_CreatesDataDirAndConfig(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := newInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{tmpDir})

	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(tmpDir, ".codecompass"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(tmpDir, ".codecompass.yaml"))
	assert.NoError(t, err)
}

func TestInitCmd_ExistingConfigPreservedWithoutForce(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".codecompass.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("custom: true\n"), 0o644))

	cmd := newInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{tmpDir})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "custom: true\n", string(data))
}

func TestInitCmd_NonexistentPath_ReturnsError(t *testing.T) {
	cmd := newInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "does-not-exist")})

	assert.Error(t, cmd.Execute())
}
