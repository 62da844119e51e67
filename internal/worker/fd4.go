package worker

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/opendap-hyrax/besd/internal/errs"
)

// SupervisorPipeFD is the file descriptor the supervisor holds open as
// the write side of a pipe(2) into the master worker (spec §4.5
// "Startup handshake to supervisor"). fd 0/1/2 are stdio; fd 3 is left
// unset by the supervisor (a re-exec'd child session receives its
// accepted connection there), so the supervisor's liveness pipe lives
// at 4.
const SupervisorPipeFD = 4

// StatusWord is the 4-byte value written to fd 4 once the first listener
// binds successfully, or on bind failure.
type StatusWord [4]byte

var (
	StatusWordReady  = StatusWord{'R', 'D', 'Y', '0'}
	StatusWordFailed = StatusWord{'F', 'A', 'I', 'L'}
)

// SignalSupervisor writes word to fd 4, if it is open. A master worker
// started outside the supervisor (e.g. under a test harness) has no
// fd 4 and this is a silent no-op.
func SignalSupervisor(word StatusWord) error {
	if _, err := unix.FcntlInt(uintptr(SupervisorPipeFD), unix.F_GETFD, 0); err != nil {
		return nil
	}
	f := os.NewFile(uintptr(SupervisorPipeFD), "supervisor-pipe")
	if f == nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(word[:]); err != nil {
		return errs.Wrap(errs.IOError, "write to supervisor pipe failed", err)
	}
	return nil
}

// AwaitMasterReady is called by the supervisor: it blocks reading one
// status word from the read end of the pipe it created for the master.
func AwaitMasterReady(readEnd *os.File) (StatusWord, error) {
	var word StatusWord
	n, err := readEnd.Read(word[:])
	if err != nil {
		return word, errs.Wrap(errs.IOError, "read master status word failed", err)
	}
	if n != len(word) {
		return word, errs.New(errs.IOError, "short read on master status word")
	}
	return word, nil
}
