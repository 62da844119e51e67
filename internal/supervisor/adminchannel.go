package supervisor

import (
	"bytes"
	"context"
	"time"

	"github.com/opendap-hyrax/besd/internal/admin"
	"github.com/opendap-hyrax/besd/internal/errs"
	"github.com/opendap-hyrax/besd/internal/logging"
	"github.com/opendap-hyrax/besd/internal/metrics"
	"github.com/opendap-hyrax/besd/internal/ppt/session"
	"github.com/opendap-hyrax/besd/internal/ppt/socket"
)

// AdminChannel hosts the operator-facing admin port (spec §4.6 "Admin
// channel host", §4.7 wire framing): a PPT session endpoint, separate
// from the data port, that accepts one client at a time and dispatches
// each received XML document to an admin.Handler.
type AdminChannel struct {
	Listener    socket.Socket
	Handler     *admin.Handler
	Logger      logging.Logger
	Signals     *SignalPolicy
	Metrics     *metrics.Registry
	HandshakeTO time.Duration
}

// NewAdminChannel builds a channel bound to an already-listening socket.
func NewAdminChannel(l socket.Socket, h *admin.Handler, log logging.Logger, sig *SignalPolicy) *AdminChannel {
	return &AdminChannel{
		Listener:    l,
		Handler:     h,
		Logger:      log,
		Signals:     sig,
		HandshakeTO: 5 * time.Second,
	}
}

// Run accepts admin connections until ctx is cancelled, one at a time:
// Run's own loop — accept, then serve to completion, then accept again
// — is the one-client-at-a-time gate spec §4.6 requires ("while one is
// connected, further admin accepts wait"); a second connection simply
// sits in the listener's backlog until serve returns.
func (a *AdminChannel) Run(ctx context.Context) error {
	// Accept does not watch ctx; closing the listener on cancellation is
	// what unblocks it so the loop below can return.
	go func() {
		<-ctx.Done()
		_ = a.Listener.Close()
	}()
	for {
		peer, err := a.Listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			a.Logger.Warn("admin", "accept failed", "error", err.Error())
			continue
		}

		shutdown := a.serve(peer)
		if shutdown {
			return nil
		}
	}
}

// serve runs one admin client's session to completion and reports
// whether an Exit command was processed, telling Run to stop accepting
// further admin connections entirely (spec §4.7 "Exit ... (connection
// closes)" escalates to supervisor shutdown).
func (a *AdminChannel) serve(peer socket.Socket) (shutdown bool) {
	defer func() { _ = peer.Close() }()

	sess := session.New(peer, a.HandshakeTO)
	defer func() { _ = sess.Close() }()

	if err := sess.ServerHandshake(false); err != nil {
		a.Logger.Warn("admin", "handshake failed", "error", err.Error())
		return false
	}

	for {
		var body bytes.Buffer
		for {
			_, done, err := sess.Receive(&body)
			if err != nil {
				if !errs.Is(err, errs.PeerClosed) {
					a.Logger.Warn("admin", "receive failed", "error", err.Error())
				}
				return false
			}
			if done {
				break
			}
		}

		var resp []byte
		var exit bool
		a.Signals.BlockDuring(func() {
			resp, exit = a.Handler.Handle(body.Bytes())
		})
		if a.Metrics != nil {
			a.Metrics.AdminCommandsTotal.WithLabelValues("dispatch").Inc()
		}

		if err := sess.Send(nil, resp); err != nil {
			a.Logger.Warn("admin", "send failed", "error", err.Error())
			return false
		}
		if exit {
			return true
		}
	}
}
