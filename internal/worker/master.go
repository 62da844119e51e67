package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/opendap-hyrax/besd/internal/logging"
	"github.com/opendap-hyrax/besd/internal/metrics"
	"github.com/opendap-hyrax/besd/internal/ppt/listener"
	"github.com/opendap-hyrax/besd/internal/ppt/socket"
	"github.com/opendap-hyrax/besd/internal/procctx"
	"github.com/opendap-hyrax/besd/pkg/dispatch"
)

// Master is the master worker of spec §4.5: accepts connections on a
// listener.Set and hands each one to a per-session handler, either a
// real child process or an in-process goroutine.
//
// Fork discipline (spec §4.5, §9 Design Notes): the original C process
// double-forks to avoid zombies — fork a throwaway first child that
// immediately forks the real grandchild and exits, so the master's one
// waitpid reaps the (short-lived) first child and the grandchild is
// reparented to init. Go cannot safely fork(2) without exec(2) in a
// multi-threaded runtime, so besd replaces the double fork with the
// idiom os/exec already gives a Go program: re-exec the same binary
// (ReExecPath) with the accepted connection's descriptor passed via
// ExtraFiles, and reap it with an explicit goroutine calling Cmd.Wait —
// there is no intermediate process to double-fork away, so there are no
// zombies to begin with. This choice is recorded in DESIGN.md.
type Master struct {
	Listener      *listener.Set
	Dispatcher    dispatch.ExternalDispatcher
	Logger        logging.Logger
	PCtx          *procctx.Context
	SingleProcess bool
	ReExecPath    string
	ReExecArgs    []string
	HandshakeTO   time.Duration
	Metrics       *metrics.Registry

	mu       sync.Mutex
	children map[int]*exec.Cmd
	openConn int64
}

// NewMaster builds a Master ready to Run. When singleProcess is true the
// fork is skipped entirely and sessions are handled by a goroutine in
// this same process, in order of acceptance is not preserved across
// goroutines but isolation is not required either (spec §4.5: "A
// single-process mode is also supported").
func NewMaster(l *listener.Set, disp dispatch.ExternalDispatcher, log logging.Logger, pctx *procctx.Context, singleProcess bool) *Master {
	return &Master{
		Listener:      l,
		Dispatcher:    disp,
		Logger:        log,
		PCtx:          pctx,
		SingleProcess: singleProcess,
		ReExecPath:    os.Args[0],
		HandshakeTO:   session_DefaultHandshakeTimeout,
		children:      make(map[int]*exec.Cmd),
	}
}

const session_DefaultHandshakeTimeout = 5 * time.Second

// Run is the accept loop (spec §4.5 "Master worker. Accepts connections;
// for each, spawns a child process to handle the full session"). It
// blocks until pctx is cancelled.
func (m *Master) Run(ctx context.Context) error {
	if err := SignalSupervisor(StatusWordReady); err != nil {
		m.Logger.Warn("worker", "failed to signal supervisor readiness", "error", err.Error())
	}

	for {
		select {
		case <-m.PCtx.Done():
			return nil
		default:
		}

		peer, _, err := m.Listener.AcceptAny(m.PCtx.Done())
		if err != nil {
			select {
			case <-m.PCtx.Done():
				return nil
			default:
			}
			m.Logger.Warn("worker", "accept failed", "error", err.Error())
			continue
		}

		m.addConn(1)
		if m.Metrics != nil {
			m.Metrics.ConnectionsAccepted.Inc()
			m.Metrics.SessionsActive.Inc()
		}
		if m.SingleProcess {
			go m.handleInProcess(ctx, peer)
		} else {
			go m.handleAsChildProcess(peer)
		}
	}
}

func (m *Master) addConn(delta int64) {
	m.mu.Lock()
	m.openConn += delta
	m.mu.Unlock()
}

func (m *Master) OpenConnections() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openConn
}

func (m *Master) handleInProcess(ctx context.Context, peer socket.Socket) {
	defer m.addConn(-1)
	defer func() { _ = peer.Close() }()
	code := RunChildSession(ctx, m.PCtx, peer, m.Dispatcher, m.Logger, m.HandshakeTO)
	m.sessionEnded(outcomeFromExitCode(code))
}

func (m *Master) sessionEnded(outcome metrics.SessionOutcome) {
	if m.Metrics != nil {
		m.Metrics.SessionsActive.Dec()
		m.Metrics.SessionsTotal.WithLabelValues(string(outcome)).Inc()
	}
}

// outcomeFromExitCode classifies a session's exit status for
// SessionsTotal: ExitDistinguished is a clean completion, anything else
// is a session-level error. Child-process re-exec reaps surface only a
// process exit code too, so the same classification applies there.
func outcomeFromExitCode(code int) metrics.SessionOutcome {
	if code == ExitDistinguished {
		return metrics.OutcomeNormal
	}
	return metrics.OutcomeError
}

// exitCodeOf decodes a child session process's exit code from
// exec.Cmd.Wait's error, mirroring supervisor.exitCodeOf.
func exitCodeOf(err error) int {
	if err == nil {
		return ExitDistinguished
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return 1
}

// handleAsChildProcess re-execs ReExecPath with a sentinel argument
// telling the child to run RunChildSession against the inherited
// descriptor, then waits on it asynchronously to reap it.
//
// The fd-passing fallback delegates to handleInProcess, which already
// owns the connection-count decrement and the SessionsTotal record for
// that path, so this function must not also record them in that branch.
func (m *Master) handleAsChildProcess(peer socket.Socket) {
	f, ok := connFile(peer)
	if !ok {
		m.Logger.Warn("worker", "socket does not support fd passing, falling back to in-process handling")
		m.handleInProcess(context.Background(), peer)
		return
	}
	defer m.addConn(-1)
	defer func() { _ = f.Close() }()
	defer func() { _ = peer.Close() }()

	args := append([]string{}, m.ReExecArgs...)
	args = append(args, "--ppt-child-session")
	cmd := exec.Command(m.ReExecPath, args...)
	cmd.ExtraFiles = []*os.File{f}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		m.Logger.Error("worker", "failed to spawn child session process", "error", err.Error())
		m.sessionEnded(metrics.OutcomeFatal)
		return
	}

	m.mu.Lock()
	m.children[cmd.Process.Pid] = cmd
	m.mu.Unlock()

	// No double fork is needed: os/exec's fork+exec is already safe, and
	// this goroutine's Wait is the reaper (see Master doc comment).
	err := cmd.Wait()
	m.mu.Lock()
	delete(m.children, cmd.Process.Pid)
	m.mu.Unlock()
	m.sessionEnded(outcomeFromExitCode(exitCodeOf(err)))

	if err != nil {
		m.Logger.Info("worker", "child session exited non-zero", "pid", fmt.Sprint(cmd.Process.Pid), "error", err.Error())
	}
}

// ReapAll is invoked by SignalPolicy's SIGCHLD handler in multi-process
// mode; exec.Cmd.Wait (called per child in its own goroutine above)
// already performs the reap, so this is a no-op placeholder kept so the
// signal policy always has a reapOne function to call.
func (m *Master) ReapAll() {}
