package supervisor

import (
	"syscall"

	"github.com/opendap-hyrax/besd/internal/errs"
	"github.com/opendap-hyrax/besd/internal/logging"
)

// Controller adapts a Supervisor plus its config registry and logger to
// the internal/admin.Controller interface. GetLogContexts/SetLogContext
// read and write the same per-context gate Logger.Debug consults, so an
// admin toggle takes effect immediately.
type Controller struct {
	Sup     *Supervisor
	Configs *ConfigRegistry
	Logger  logging.Logger
	LogPath string
	OnExit  func() error
}

func (c *Controller) StopMasterNow() error {
	if !c.Sup.Running() {
		return errs.New(errs.SyntaxUser, "master worker is not running")
	}
	return c.Sup.StopTree(syscall.SIGTERM)
}

func (c *Controller) StartMaster() error {
	if c.Sup.Running() {
		return errs.New(errs.SyntaxUser, "master worker is already running")
	}
	return c.Sup.Spawn()
}

func (c *Controller) ExitSupervisor() error {
	if c.Sup.Running() {
		if err := c.Sup.StopTree(syscall.SIGTERM); err != nil {
			return err
		}
	}
	if c.OnExit != nil {
		return c.OnExit()
	}
	return nil
}

func (c *Controller) ConfigModules() []string { return c.Configs.Modules() }

func (c *Controller) ReadConfig(module string) (string, error) { return c.Configs.Read(module) }

func (c *Controller) WriteConfig(module, content string) error {
	return c.Configs.Write(module, content)
}

func (c *Controller) TailLog(lines int) (string, error) { return TailLogFile(c.LogPath, lines) }

func (c *Controller) LogContexts() map[string]bool {
	out := make(map[string]bool)
	for _, cs := range c.Logger.Contexts() {
		out[cs.Name] = cs.On
	}
	return out
}

func (c *Controller) SetLogContext(name string, on bool) { c.Logger.SetDebug(name, on) }

func (c *Controller) StatusText() string { return c.Sup.StatusNow().String() }
