package supervisor_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendap-hyrax/besd/internal/supervisor"
)

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))
}

func TestTailLogFileReturnsLastNLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bes.log")
	writeLines(t, path, "one", "two", "three", "four")

	out, err := supervisor.TailLogFile(path, 2)
	require.NoError(t, err)
	assert.Equal(t, "three\nfour", out)
}

func TestTailLogFileZeroReturnsAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bes.log")
	writeLines(t, path, "one", "two", "three")

	out, err := supervisor.TailLogFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree", out)
}

func TestTailLogFileNMoreThanAvailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bes.log")
	writeLines(t, path, "only")

	out, err := supervisor.TailLogFile(path, 50)
	require.NoError(t, err)
	assert.Equal(t, "only", out)
}

func TestTailLogFileMissing(t *testing.T) {
	_, err := supervisor.TailLogFile(filepath.Join(t.TempDir(), "missing.log"), 10)
	assert.Error(t, err)
}
