// Package config is the CLI/configuration surface shared by cmd/besd
// and cmd/beslistener (spec §6 "CLI: supervisor" / "CLI: master
// worker" — both binaries accept the same flag set).
package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opendap-hyrax/besd/internal/errs"
)

// Config is the bound, validated form of the `-i -c -r -p -u -d -s -v`
// flag set.
type Config struct {
	InstallDir   string `mapstructure:"install_dir" validate:"omitempty,dir"`
	ConfigFile   string `mapstructure:"config_file" validate:"omitempty,file"`
	PIDDir       string `mapstructure:"pid_dir" validate:"required,dirpath"`
	Port         int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	UnixSocket   string `mapstructure:"unix_socket" validate:"omitempty,filepath"`
	DebugSpec    string `mapstructure:"debug_spec"`
	SingleOrFore bool   `mapstructure:"single_process"`
	Verbose      bool   `mapstructure:"verbose"`

	// User and Group are not part of the CLI flag set (spec §6 names only
	// -i -c -r -p -u -d -s -v -h); they arrive from besd.yaml or the
	// BESD_USER/BESD_GROUP environment, per "external configuration"
	// (spec §4.5 "Privilege drop").
	User  string `mapstructure:"user"`
	Group string `mapstructure:"group"`

	// AdminPort is likewise external configuration only (spec §4.6
	// "Binds an additional TCP socket (fixed configured port)").
	AdminPort int `mapstructure:"admin_port" validate:"omitempty,min=1,max=65535"`

	// LogFile is the path TailLog reads from (spec §4.7 "TailLog").
	LogFile string `mapstructure:"log_file"`
}

var validate = validator.New()

// BindFlags registers the shared flag set on cmd, the way both besd and
// beslistener expose it (spec §6).
func BindFlags(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringP("install-dir", "i", "", "installation directory")
	fl.StringP("config-file", "c", "", "path to the BES configuration file")
	fl.StringP("pid-dir", "r", "/var/run/besd", "directory holding the PID file")
	fl.IntP("port", "p", 10022, "PPT data port (TCP)")
	fl.StringP("unix-socket", "u", "", "PPT data socket (Unix domain); bound alongside --port when both are set")
	fl.StringP("debug-spec", "d", "", "debug context specification")
	fl.BoolP("single-process", "s", false, "handle sessions in-process instead of forking a child per connection")
	fl.BoolP("verbose", "v", false, "verbose logging")
}

// Load binds cmd's flags into viper (flags, then environment, then an
// optional besd.yaml in the install dir), validates the result, and
// returns it.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("besd")
	v.AutomaticEnv()
	v.SetDefault("admin_port", 11002)
	v.SetDefault("log_file", "/var/log/besd/besd.log")

	if err := v.BindPFlag("install_dir", cmd.Flags().Lookup("install-dir")); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "bind install-dir flag", err)
	}
	if err := v.BindPFlag("config_file", cmd.Flags().Lookup("config-file")); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "bind config-file flag", err)
	}
	if err := v.BindPFlag("pid_dir", cmd.Flags().Lookup("pid-dir")); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "bind pid-dir flag", err)
	}
	if err := v.BindPFlag("port", cmd.Flags().Lookup("port")); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "bind port flag", err)
	}
	if err := v.BindPFlag("unix_socket", cmd.Flags().Lookup("unix-socket")); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "bind unix-socket flag", err)
	}
	if err := v.BindPFlag("debug_spec", cmd.Flags().Lookup("debug-spec")); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "bind debug-spec flag", err)
	}
	if err := v.BindPFlag("single_process", cmd.Flags().Lookup("single-process")); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "bind single-process flag", err)
	}
	if err := v.BindPFlag("verbose", cmd.Flags().Lookup("verbose")); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "bind verbose flag", err)
	}
	if err := v.BindEnv("user", "BESD_USER"); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "bind user env", err)
	}
	if err := v.BindEnv("group", "BESD_GROUP"); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "bind group env", err)
	}
	if err := v.BindEnv("admin_port", "BESD_ADMIN_PORT"); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "bind admin_port env", err)
	}
	if err := v.BindEnv("log_file", "BESD_LOG_FILE"); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "bind log_file env", err)
	}

	if installDir := v.GetString("install_dir"); installDir != "" {
		v.SetConfigName("besd")
		v.SetConfigType("yaml")
		v.AddConfigPath(installDir)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, errs.Wrap(errs.InternalFatal, "read besd.yaml", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.Wrap(errs.InternalFatal, "unmarshal configuration", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, errs.Wrap(errs.SyntaxUser, "invalid configuration", err)
	}
	return cfg, nil
}
