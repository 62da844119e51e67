package supervisor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendap-hyrax/besd/internal/logging"
	"github.com/opendap-hyrax/besd/internal/supervisor"
	"github.com/opendap-hyrax/besd/internal/worker"
)

func TestSupervisorSpawnAndReapNormalExit(t *testing.T) {
	sup := supervisor.New("/bin/sh", []string{"-c", "printf 'RDY0' >&4; exit 0"}, logging.New(nil))

	require.NoError(t, sup.Spawn())
	assert.True(t, sup.Running())
	assert.NotZero(t, sup.Pid())
	assert.Equal(t, supervisor.StatusOk, sup.StatusNow())

	es, reaped := sup.Reap()
	assert.True(t, reaped)
	assert.Equal(t, worker.StatusOK, es)
	assert.Equal(t, supervisor.StatusStopped, sup.StatusNow())
	assert.False(t, sup.Running())
}

func TestSupervisorSpawnFailsWithoutReadySignal(t *testing.T) {
	sup := supervisor.New("/bin/sh", []string{"-c", "exit 1"}, logging.New(nil))

	err := sup.Spawn()
	assert.Error(t, err)
	assert.False(t, sup.Running())
}

func TestSupervisorSpawnRejectsDoubleStart(t *testing.T) {
	sup := supervisor.New("/bin/sh", []string{"-c", "printf 'RDY0' >&4; sleep 5"}, logging.New(nil))
	require.NoError(t, sup.Spawn())
	defer sup.StopTree(15) // SIGTERM

	assert.Error(t, sup.Spawn())
}

func TestSupervisorStopTreeKillsProcessGroup(t *testing.T) {
	sup := supervisor.New("/bin/sh", []string{"-c", "printf 'RDY0' >&4; sleep 30"}, logging.New(nil))
	require.NoError(t, sup.Spawn())

	done := make(chan error, 1)
	go func() { done <- sup.StopTree(15) }() // SIGTERM

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("StopTree did not return in time")
	}
	assert.False(t, sup.Running())
	assert.Equal(t, supervisor.StatusStopped, sup.StatusNow())
}

func TestSupervisorReapDecodesRestartStatus(t *testing.T) {
	sup := supervisor.New("/bin/sh", []string{"-c", "printf 'RDY0' >&4; exit 3"}, logging.New(nil))
	require.NoError(t, sup.Spawn())

	es, reaped := sup.Reap()
	assert.True(t, reaped)
	assert.Equal(t, worker.StatusServerRestart, es)
	assert.Equal(t, supervisor.StatusRestart, sup.StatusNow())
}
