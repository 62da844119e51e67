package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/opendap-hyrax/besd/internal/errs"
	"github.com/opendap-hyrax/besd/internal/logging"
	"github.com/opendap-hyrax/besd/internal/worker"
)

// Status is the decoded master exit class the admin handler reads as
// "master_beslistener_status" (spec §4.6).
type Status int

const (
	StatusStopped Status = iota
	StatusOk
	StatusError
	StatusRestart
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "Ok"
	case StatusError:
		return "Error"
	case StatusRestart:
		return "Restart"
	default:
		return "Stopped"
	}
}

// Supervisor owns the master worker's lifecycle: spawning it, reading
// its fd-4 readiness pipe, waiting for it to exit, deciding whether to
// restart, and exposing killpg-based control to the admin handler.
type Supervisor struct {
	MasterPath string
	MasterArgs []string
	Logger     logging.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	status Status
}

// New builds a Supervisor that will spawn masterPath with masterArgs.
func New(masterPath string, masterArgs []string, log logging.Logger) *Supervisor {
	return &Supervisor{MasterPath: masterPath, MasterArgs: masterArgs, Logger: log, status: StatusStopped}
}

// Spawn execs the master worker binary with fd 4 wired to the write end
// of a fresh pipe, setsid so the master becomes its own process-group
// leader (spec §4.6 "all its children share a group id equal to the
// master's pid"), and blocks on AwaitMasterReady before returning.
func (s *Supervisor) Spawn() error {
	s.mu.Lock()
	if s.cmd != nil {
		s.mu.Unlock()
		return errs.New(errs.InternalFatal, "master already running")
	}
	s.mu.Unlock()

	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return errs.Wrap(errs.IOError, "create supervisor pipe", err)
	}
	defer func() { _ = readEnd.Close() }()

	cmd := exec.Command(s.MasterPath, s.MasterArgs...)
	// ExtraFiles[i] becomes fd 3+i in the child; the master expects its
	// readiness pipe at fd 4, so index 1 carries writeEnd.
	cmd.ExtraFiles = []*os.File{nil, writeEnd}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = writeEnd.Close()
		return errs.Wrap(errs.IOError, "start master worker", err)
	}
	_ = writeEnd.Close()

	word, err := worker.AwaitMasterReady(readEnd)
	if err != nil || word != worker.StatusWordReady {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
		s.mu.Lock()
		s.status = StatusError
		s.mu.Unlock()
		if err != nil {
			return err
		}
		return errs.New(errs.InternalFatal, "master worker reported startup failure")
	}

	s.mu.Lock()
	s.cmd = cmd
	s.status = StatusOk
	s.mu.Unlock()

	return nil
}

// Pid returns the running master's pid, or 0 if none is running.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Running reports whether a master worker is currently tracked.
func (s *Supervisor) Running() bool {
	return s.Pid() != 0
}

// StatusNow is the current decoded master_beslistener_status.
func (s *Supervisor) StatusNow() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// StopTree sends sig to the master's entire process group (spec §4.6
// "killpg(mpid, sig)") and waits for the master to be reaped.
func (s *Supervisor) StopTree(sig syscall.Signal) error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return errs.New(errs.SyntaxUser, "master worker is not running")
	}

	if err := unix.Kill(-cmd.Process.Pid, sig); err != nil && err != unix.ESRCH {
		return errs.Wrap(errs.IOError, "killpg master worker", err)
	}

	_, _ = cmd.Process.Wait()

	s.mu.Lock()
	s.cmd = nil
	s.status = StatusStopped
	s.mu.Unlock()
	return nil
}

// Reap blocks waiting for the current master to exit on its own (used
// by the SIGCHLD handler path rather than an explicit StopTree call),
// decodes its exit status into a Status, and records it.
func (s *Supervisor) Reap() (worker.ExitStatus, bool) {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil {
		return worker.StatusUndefined, false
	}

	err := cmd.Wait()
	code := exitCodeOf(err)
	es := worker.ExitStatus(code)

	s.mu.Lock()
	s.cmd = nil
	switch es {
	case worker.StatusOK:
		s.status = StatusStopped
	case worker.StatusServerRestart:
		s.status = StatusRestart
	default:
		s.status = StatusError
	}
	s.mu.Unlock()

	return es, true
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return int(worker.StatusAbnormalTermination)
}
