// Command besd is the supervisor daemon of spec §4.6: it launches the
// master worker (beslistener), holds the PID file, restarts the worker
// on a decoded SERVER_EXIT_RESTART status, and hosts the admin command
// channel (spec §4.7).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/opendap-hyrax/besd/internal/config"
	"github.com/opendap-hyrax/besd/internal/logging"
	"github.com/opendap-hyrax/besd/internal/metrics"
	"github.com/opendap-hyrax/besd/internal/ppt/socket"
	"github.com/opendap-hyrax/besd/internal/procctx"
	"github.com/opendap-hyrax/besd/internal/supervisor"
	"github.com/opendap-hyrax/besd/internal/worker"
)

// applyDebugSpec turns a comma-separated -d value into per-context
// SetDebug calls (spec §4.7 GetLogContexts/SetLogContext share the same
// named-context model as -d at start-up).
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
		Use:          "besd",
		Short:        "BES supervisor daemon",
		SilenceUsage: true,
	}
	config.BindFlags(root)

	root.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		log := logging.New(os.Stderr)
		applyDebugSpec(log, cfg.DebugSpec)

		return run(cfg, log)
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(worker.StatusFatalCannotStart))
	}
}

func run(cfg *config.Config, log logging.Logger) error {
	pctx := procctx.New(nil)

	adminListener, err := socket.ListenTCP(fmt.Sprintf(":%d", cfg.AdminPort))
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	registry := supervisor.NewConfigRegistry()
	if cfg.ConfigFile != "" {
		registry.Register("bes.conf", cfg.ConfigFile)
	}

	log.SetDebug("besdaemon", false)
	log.SetDebug("besdaemon_verbose", false)

	ctrl := &supervisor.Controller{
		Configs: registry,
		Logger:  log,
		LogPath: cfg.LogFile,
	}

	pidPath := filepath.Join(cfg.PIDDir, "bes.pid")
	masterArgs := masterArgsFor(cfg)

	daemon := supervisor.NewDaemon(masterPath(), masterArgs, pidPath, adminListener, ctrl, log, pctx, reg)

	if err := daemon.Start(); err != nil {
		return err
	}
	return daemon.Run()
}

// masterPath locates the beslistener binary alongside besd's own
// executable, falling back to letting PATH resolution find it.
func masterPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "beslistener"
	}
	candidate := filepath.Join(filepath.Dir(exe), "beslistener")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return "beslistener"
}

func masterArgsFor(cfg *config.Config) []string {
	args := []string{"--pid-dir", cfg.PIDDir}
	if cfg.Port != 0 {
		args = append(args, "--port", fmt.Sprint(cfg.Port))
	}
	if cfg.UnixSocket != "" {
		args = append(args, "--unix-socket", cfg.UnixSocket)
	}
	if cfg.DebugSpec != "" {
		args = append(args, "--debug-spec", cfg.DebugSpec)
	}
	if cfg.SingleOrFore {
		args = append(args, "--single-process")
	}
	if cfg.Verbose {
		args = append(args, "--verbose")
	}
	return args
}
