package supervisor_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendap-hyrax/besd/internal/supervisor"
)

func TestWriteReadPIDFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bes.pid")

	require.NoError(t, supervisor.WritePIDFile(path))

	pid, uid, err := supervisor.ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, os.Getuid(), uid)
}

func TestReadPIDFileMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bes.pid")
	require.NoError(t, os.WriteFile(path, []byte("not a pid file"), 0o644))

	_, _, err := supervisor.ReadPIDFile(path)
	assert.Error(t, err)
}

func TestReadPIDFileMissing(t *testing.T) {
	_, _, err := supervisor.ReadPIDFile(filepath.Join(t.TempDir(), "missing.pid"))
	assert.Error(t, err)
}

func TestRemovePIDFileToleratesMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bes.pid")
	assert.NoError(t, supervisor.RemovePIDFile(path))
}

func TestRemovePIDFileDeletesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bes.pid")
	require.NoError(t, supervisor.WritePIDFile(path))

	require.NoError(t, supervisor.RemovePIDFile(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
