package worker_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendap-hyrax/besd/internal/worker"
)

func TestAwaitMasterReadyReadsStatusWord(t *testing.T) {
	readEnd, writeEnd, err := os.Pipe()
	require.NoError(t, err)
	defer readEnd.Close()

	go func() {
		_, _ = writeEnd.Write(worker.StatusWordReady[:])
		_ = writeEnd.Close()
	}()

	word, err := worker.AwaitMasterReady(readEnd)
	require.NoError(t, err)
	assert.Equal(t, worker.StatusWordReady, word)
}

func TestAwaitMasterReadyShortRead(t *testing.T) {
	readEnd, writeEnd, err := os.Pipe()
	require.NoError(t, err)
	defer readEnd.Close()

	go func() {
		_, _ = writeEnd.Write([]byte{'F'})
		_ = writeEnd.Close()
	}()

	_, err = worker.AwaitMasterReady(readEnd)
	assert.Error(t, err)
}
