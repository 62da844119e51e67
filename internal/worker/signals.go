package worker

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/opendap-hyrax/besd/internal/logging"
	"github.com/opendap-hyrax/besd/internal/procctx"
)

// SignalPolicy installs the master worker's signal handlers (spec §4.5
// "Signal policy in the master worker"). Handlers are limited to setting
// flags on pctx and, for SIGCHLD, reaping — matching the async-signal-
// safety requirement of spec §5 even though Go delivers signals on a
// channel rather than as a true signal-handler callback.
type SignalPolicy struct {
	pctx *procctx.Context
	log  logging.Logger

	mu       sync.Mutex
	reapOne  func()
	stopc    chan struct{}
	stopOnce sync.Once
}

func NewSignalPolicy(pctx *procctx.Context, log logging.Logger, reapOne func()) *SignalPolicy {
	return &SignalPolicy{pctx: pctx, log: log, reapOne: reapOne, stopc: make(chan struct{})}
}

// Run installs handlers and blocks, dispatching until Stop is called or
// the process context is cancelled. Run is meant to be launched in its
// own goroutine.
func (p *SignalPolicy) Run() {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, syscall.SIGCHLD, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGPIPE)
	defer signal.Stop(ch)

	for {
		select {
		case <-p.stopc:
			return
		case <-p.pctx.Done():
			return
		case sig := <-ch:
			switch sig {
			case syscall.SIGCHLD:
				// Reap one child per delivery, non-blocking (spec:
				// "reap one child per delivery, non-blocking").
				if p.reapOne != nil {
					p.reapOne()
				}
			case syscall.SIGHUP:
				p.log.Info("worker", "SIGHUP received, requesting restart")
				p.pctx.SetRestartRequested(true)
				p.pctx.Shutdown()
			case syscall.SIGTERM:
				p.log.Info("worker", "SIGTERM received, shutting down")
				p.pctx.Shutdown()
			case syscall.SIGPIPE:
				p.log.Warn("worker", "SIGPIPE received, marking broken pipe")
				p.pctx.SetBrokenPipe(true)
			}
		}
	}
}

func (p *SignalPolicy) Stop() {
	p.stopOnce.Do(func() { close(p.stopc) })
}
