package worker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opendap-hyrax/besd/internal/worker"
)

func TestExitStatusStrings(t *testing.T) {
	cases := map[worker.ExitStatus]string{
		worker.StatusOK:                  "ok",
		worker.StatusFatalCannotStart:    "fatal-cannot-start",
		worker.StatusAbnormalTermination: "abnormal-termination",
		worker.StatusServerRestart:       "restart-requested",
		worker.StatusChildNormal:         "child-normal",
		worker.StatusChildAbnormal:       "child-abnormal",
		worker.StatusReady:               "child-ready",
		worker.ExitStatus(99):            "undefined",
	}
	for status, want := range cases {
		assert.Equal(t, want, status.String())
	}
}
