// Package worker implements the worker-side server loop of spec §4.5:
// the master's accept loop, fork-per-connection dispatch (or an
// in-process single-mode fallback), the per-session command/response
// cycle, and the signal-driven lifecycle tying them together.
package worker

import (
	"bytes"
	"context"
	"time"

	"github.com/opendap-hyrax/besd/internal/errs"
	"github.com/opendap-hyrax/besd/internal/logging"
	"github.com/opendap-hyrax/besd/internal/ppt/frame"
	"github.com/opendap-hyrax/besd/internal/ppt/session"
	"github.com/opendap-hyrax/besd/internal/ppt/socket"
	"github.com/opendap-hyrax/besd/internal/procctx"
	"github.com/opendap-hyrax/besd/pkg/dispatch"
)

// ExitDistinguished is the status a child session process (or, in
// single-process mode, the per-session goroutine) reports on normal
// completion (spec §4.5 "The session handler in the grandchild exits
// with a distinguished status on normal completion").
const ExitDistinguished = 0

// RunChildSession runs one PPT session end to end: server handshake,
// then the receive/dispatch/respond loop of spec §4.5 step 2, until the
// peer sends status=exit_now or the connection is lost. It is the body
// of both the re-exec'd child-process binary entrypoint and the
// single-process-mode goroutine.
func RunChildSession(ctx context.Context, pctx *procctx.Context, sock socket.Socket, disp dispatch.ExternalDispatcher, log logging.Logger, handshakeTimeout time.Duration) int {
	sess := session.New(sock, handshakeTimeout)
	defer func() { _ = sess.Close() }()

	if err := sess.ServerHandshake(false); err != nil {
		log.Warn("worker", "handshake failed", "error", err.Error())
		return 1
	}

	for {
		if pctx != nil && pctx.BrokenPipe() {
			sess.SetBrokenPipe(true)
			return ExitDistinguished
		}

		var req bytes.Buffer
		var ext frame.Extensions
		for {
			e, done, err := sess.Receive(&req)
			if err != nil {
				if errs.Is(err, errs.PeerClosed) {
					return ExitDistinguished
				}
				log.Warn("worker", "receive failed", "error", err.Error())
				return 1
			}
			if e != nil {
				ext = e
			}
			if done {
				break
			}
		}

		if v, has, present := ext.Get(frame.ExtStatus); present && has && v == frame.StatusExitNow {
			return ExitDistinguished
		}

		sink := sess.NewStreamSink()
		derr := disp.Dispatch(ctx, req.Bytes(), ext, sink)
		if derr == nil {
			if err := sink.FlushTerminator(); err != nil {
				log.Warn("worker", "flush failed", "error", err.Error())
				return 1
			}
			continue
		}

		switch errs.CodeOf(derr) {
		case errs.DispatchTerminateImmediate:
			// status=error/exit=true must ride with the error text in the
			// same message (spec §4.5 step e): a client's Receive loop
			// stops at the first terminator, so the extensions have to
			// precede that payload's data chunks, not follow as a second
			// message.
			var fatal frame.Extensions
			fatal.Set(frame.ExtStatus, frame.StatusError, true)
			fatal.Set(frame.ExtExit, frame.ExtExitTrueStr, true)
			_ = sess.Send(fatal, []byte(derr.Error()))
			return 1
		default:
			// DispatchUserSyntax or anything else: log and continue the
			// session loop (spec §4.5 step f).
			log.Info("worker", "dispatch error, continuing session", "error", derr.Error())
			if err := sink.FlushTerminator(); err != nil {
				return 1
			}
		}
	}
}
