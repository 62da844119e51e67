package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendap-hyrax/besd/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestNewRegistryRegistersAllFamilies(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)

	m.ConnectionsAccepted.Inc()
	m.SessionsActive.Set(3)
	m.SessionsTotal.WithLabelValues(string(metrics.OutcomeNormal)).Inc()
	m.AdminCommandsTotal.WithLabelValues("GetStatus").Inc()
	m.MasterRestarts.Inc()

	assert.Equal(t, float64(1), counterValue(t, m.ConnectionsAccepted))
	assert.Equal(t, float64(3), gaugeValue(t, m.SessionsActive))
	assert.Equal(t, float64(1), counterValue(t, m.MasterRestarts))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["besd_connections_accepted_total"])
	assert.True(t, names["besd_sessions_active"])
	assert.True(t, names["besd_sessions_total"])
	assert.True(t, names["besd_admin_commands_total"])
	assert.True(t, names["besd_master_restarts_total"])
}

func TestNewRegistryDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewRegistry(reg)
	assert.Panics(t, func() { metrics.NewRegistry(reg) })
}
