package config_test

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendap-hyrax/besd/internal/config"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	config.BindFlags(cmd)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	cmd := newCmd(t)
	cfg, err := config.Load(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/var/run/besd", cfg.PIDDir)
	assert.Equal(t, 10022, cfg.Port)
	assert.Equal(t, 11002, cfg.AdminPort)
	assert.False(t, cfg.SingleOrFore)
	assert.False(t, cfg.Verbose)
}

func TestLoadFlagOverrides(t *testing.T) {
	cmd := newCmd(t, "--port", "20022", "--single-process", "--verbose", "--debug-spec", "ppt,besdaemon")
	cfg, err := config.Load(cmd)
	require.NoError(t, err)
	assert.Equal(t, 20022, cfg.Port)
	assert.True(t, cfg.SingleOrFore)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "ppt,besdaemon", cfg.DebugSpec)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	cmd := newCmd(t, "--port", "70000")
	_, err := config.Load(cmd)
	assert.Error(t, err)
}

func TestLoadEnvOverridesUserGroup(t *testing.T) {
	t.Setenv("BESD_USER", "bes")
	t.Setenv("BESD_GROUP", "bes")
	cmd := newCmd(t)
	cfg, err := config.Load(cmd)
	require.NoError(t, err)
	assert.Equal(t, "bes", cfg.User)
	assert.Equal(t, "bes", cfg.Group)
}

func TestLoadEnvOverridesAdminPortAndLogFile(t *testing.T) {
	t.Setenv("BESD_ADMIN_PORT", "12345")
	t.Setenv("BESD_LOG_FILE", "/tmp/besd-test.log")
	cmd := newCmd(t)
	cfg, err := config.Load(cmd)
	require.NoError(t, err)
	assert.Equal(t, 12345, cfg.AdminPort)
	assert.Equal(t, "/tmp/besd-test.log", cfg.LogFile)
}
