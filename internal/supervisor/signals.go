package supervisor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/opendap-hyrax/besd/internal/logging"
	"github.com/opendap-hyrax/besd/internal/procctx"
)

// SignalPolicy installs the supervisor's signal handlers (spec §4.6):
// SIGCHLD for the master pid drives the restart decision, SIGTERM tears
// down the whole worker tree and exits 0.
//
// Blocking signal delivery for the duration of admin command processing
// (spec §4.7 "Blocks signals ... to avoid racing the supervisor's own
// signal handlers") is approximated with a mutex rather than a real
// sigprocmask: the dispatch goroutine below acquires gate before acting
// on a received signal, and BlockDuring holds the same gate for the
// length of one admin invocation, so a SIGCHLD/SIGTERM delivered mid-
// command waits until the command finishes instead of racing it.
type SignalPolicy struct {
	sup  *Supervisor
	pctx *procctx.Context
	log  logging.Logger

	gate     sync.Mutex
	stopc    chan struct{}
	stopOnce sync.Once

	onRestart func()
}

// NewSignalPolicy builds a policy bound to sup. onRestart is invoked
// (from the dispatch goroutine) whenever a reaped master exit decodes
// to StatusRestart, so the caller can relaunch it.
func NewSignalPolicy(sup *Supervisor, pctx *procctx.Context, log logging.Logger, onRestart func()) *SignalPolicy {
	return &SignalPolicy{sup: sup, pctx: pctx, log: log, onRestart: onRestart, stopc: make(chan struct{})}
}

// Run installs handlers and blocks dispatching until Stop is called or
// pctx is cancelled. Meant to run in its own goroutine.
func (p *SignalPolicy) Run() {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, syscall.SIGCHLD, syscall.SIGTERM)
	defer signal.Stop(ch)

	for {
		select {
		case <-p.stopc:
			return
		case <-p.pctx.Done():
			return
		case sig := <-ch:
			p.gate.Lock()
			p.handle(sig)
			p.gate.Unlock()
		}
	}
}

func (p *SignalPolicy) handle(sig os.Signal) {
	switch sig {
	case syscall.SIGCHLD:
		if !p.sup.Running() {
			return
		}
		es, reaped := p.sup.Reap()
		if !reaped {
			return
		}
		p.log.Info("supervisor", "master worker exited", "status", es.String())
		if p.sup.StatusNow() == StatusRestart && p.onRestart != nil {
			p.onRestart()
		}
	case syscall.SIGTERM:
		p.log.Info("supervisor", "SIGTERM received, stopping worker tree")
		if p.sup.Running() {
			_ = p.sup.StopTree(syscall.SIGTERM)
		}
		p.pctx.Shutdown()
	}
}

// BlockDuring runs fn with the signal-dispatch gate held, so a signal
// delivered concurrently waits for fn to finish before it is handled.
func (p *SignalPolicy) BlockDuring(fn func()) {
	p.gate.Lock()
	defer p.gate.Unlock()
	fn()
}

func (p *SignalPolicy) Stop() {
	p.stopOnce.Do(func() { close(p.stopc) })
}
