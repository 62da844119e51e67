// Command beslistener is the master worker binary of spec §4.5: it
// binds the PPT data port(s), drops privileges, and accepts sessions
// either by re-exec'ing itself per connection or, with --single-process,
// handling them in-process.
//
// Invoked with --ppt-child-session, it skips the accept loop entirely
// and instead runs exactly one session against the connection it
// inherited on fd 3 from its parent master worker (the re-exec
// replacement for the original's fork-per-connection, documented in
// internal/worker.Master).
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/opendap-hyrax/besd/internal/config"
	"github.com/opendap-hyrax/besd/internal/errs"
	"github.com/opendap-hyrax/besd/internal/logging"
	"github.com/opendap-hyrax/besd/internal/metrics"
	"github.com/opendap-hyrax/besd/internal/ppt/listener"
	"github.com/opendap-hyrax/besd/internal/ppt/session"
	"github.com/opendap-hyrax/besd/internal/ppt/socket"
	"github.com/opendap-hyrax/besd/internal/procctx"
	"github.com/opendap-hyrax/besd/internal/worker"
	"github.com/opendap-hyrax/besd/pkg/dispatch"
)

const childSessionFD = 3

// applyDebugSpec turns a comma-separated -d value ("ppt,worker") into
// per-context SetDebug calls; empty contexts default to enabled already
// (see logging.logger.debugEnabled), so an empty spec is a no-op.
func applyDebugSpec(log logging.Logger, spec string) {
	if spec == "" {
		return
	}
	for _, ctx := range strings.Split(spec, ",") {
		ctx = strings.TrimSpace(ctx)
		if ctx != "" {
			log.SetDebug(ctx, true)
		}
	}
}

func main() {
	root := &cobra.Command{
		Use:          "beslistener",
		Short:        "PPT data-port master worker",
		SilenceUsage: true,
	}
	config.BindFlags(root)
	root.Flags().Bool("ppt-child-session", false, "run a single session against the inherited fd 3 connection, then exit")

	root.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}
		childSession, _ := cmd.Flags().GetBool("ppt-child-session")

		log := logging.New(os.Stderr)
		applyDebugSpec(log, cfg.DebugSpec)

		if childSession {
			return runChildSession(log)
		}
		return runMaster(cfg, log)
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(worker.StatusFatalCannotStart))
	}
}

func runChildSession(log logging.Logger) error {
	f := os.NewFile(uintptr(childSessionFD), "ppt-connection")
	if f == nil {
		return errs.New(errs.InternalFatal, "missing inherited connection on fd 3")
	}
	sock, err := socket.FromFile(f)
	if err != nil {
		return err
	}
	pctx := procctx.New(nil)
	code := worker.RunChildSession(context.Background(), pctx, sock, dispatch.EchoDispatcher{}, log, session.DefaultHandshakeTimeout)
	os.Exit(code)
	return nil
}

func runMaster(cfg *config.Config, log logging.Logger) error {
	pctx := procctx.New(nil)

	// A tcp port, a unix socket, or both may be configured (spec §4.3;
	// original_source/server/ServerApp.cc binds each independently and
	// registers whichever are present with the same listener).
	var socks []socket.Socket
	if cfg.Port != 0 {
		s, err := socket.ListenTCP(fmt.Sprintf(":%d", cfg.Port))
		if err != nil {
			_ = worker.SignalSupervisor(worker.StatusWordFailed)
			return err
		}
		socks = append(socks, s)
	}
	if cfg.UnixSocket != "" {
		s, err := socket.ListenUnix(cfg.UnixSocket)
		if err != nil {
			_ = worker.SignalSupervisor(worker.StatusWordFailed)
			return err
		}
		socks = append(socks, s)
	}
	if len(socks) == 0 {
		return errs.New(errs.InternalFatal, "must specify a tcp port or a unix socket or both")
	}

	if os.Geteuid() == 0 {
		if err := worker.DropPrivileges(cfg.User, cfg.Group); err != nil {
			return err
		}
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	set := listener.New(socks...)
	m := worker.NewMaster(set, dispatch.EchoDispatcher{}, log, pctx, cfg.SingleOrFore)
	m.Metrics = reg
	if cfg.Verbose {
		m.ReExecArgs = []string{"--verbose"}
	}

	sigPolicy := worker.NewSignalPolicy(pctx, log, m.ReapAll)
	go sigPolicy.Run()
	defer sigPolicy.Stop()

	if err := m.Run(context.Background()); err != nil {
		return err
	}
	// SIGHUP ends the accept loop with the restart flag set; the
	// supervisor relaunches a master that exits with StatusServerRestart.
	if pctx.RestartRequested() {
		os.Exit(int(worker.StatusServerRestart))
	}
	return nil
}
