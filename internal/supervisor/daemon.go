package supervisor

import (
	"sync"

	"github.com/opendap-hyrax/besd/internal/admin"
	"github.com/opendap-hyrax/besd/internal/errs"
	"github.com/opendap-hyrax/besd/internal/logging"
	"github.com/opendap-hyrax/besd/internal/metrics"
	"github.com/opendap-hyrax/besd/internal/ppt/socket"
	"github.com/opendap-hyrax/besd/internal/procctx"
)

// Daemon wires together everything cmd/besd needs: the master worker
// lifecycle, the PID file, the admin channel, and the signal policy
// that ties a SIGCHLD-driven restart back into Spawn (spec §4.6).
type Daemon struct {
	Sup         *Supervisor
	PIDFilePath string
	Admin       *AdminChannel
	Signals     *SignalPolicy
	Metrics     *metrics.Registry
	Logger      logging.Logger
	PCtx        *procctx.Context

	restartMu sync.Mutex
}

// NewDaemon assembles a Daemon. adminListener must already be listening.
func NewDaemon(masterPath string, masterArgs []string, pidFilePath string, adminListener socket.Socket, ctrl *Controller, log logging.Logger, pctx *procctx.Context, m *metrics.Registry) *Daemon {
	sup := New(masterPath, masterArgs, log)
	ctrl.Sup = sup
	ctrl.OnExit = func() error {
		pctx.Shutdown()
		return nil
	}

	d := &Daemon{
		Sup:         sup,
		PIDFilePath: pidFilePath,
		Metrics:     m,
		Logger:      log,
		PCtx:        pctx,
	}

	d.Signals = NewSignalPolicy(sup, pctx, log, d.onRestart)
	d.Admin = NewAdminChannel(adminListener, admin.New(ctrl), log, d.Signals)
	d.Admin.Metrics = m
	return d
}

func (d *Daemon) onRestart() {
	d.restartMu.Lock()
	defer d.restartMu.Unlock()

	if d.Metrics != nil {
		d.Metrics.MasterRestarts.Inc()
	}
	if err := d.Sup.Spawn(); err != nil {
		d.Logger.Error("supervisor", "failed to respawn master worker after restart", "error", err.Error())
	}
}

// Start writes the PID file, spawns the master worker for the first
// time, and launches the signal-dispatch goroutine.
func (d *Daemon) Start() error {
	if err := WritePIDFile(d.PIDFilePath); err != nil {
		return err
	}
	go d.Signals.Run()
	if err := d.Sup.Spawn(); err != nil {
		_ = RemovePIDFile(d.PIDFilePath)
		return errs.Wrap(errs.IOError, "initial master worker spawn failed", err)
	}
	return nil
}

// Run blocks serving the admin channel until the process context is
// cancelled or the supervisor is told to exit.
func (d *Daemon) Run() error {
	defer func() {
		d.Signals.Stop()
		_ = RemovePIDFile(d.PIDFilePath)
	}()
	return d.Admin.Run(d.PCtx.AsContext())
}
