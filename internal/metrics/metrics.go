// Package metrics exposes the Prometheus counters and gauges incremented
// at connection accept, session completion, admin command dispatch and
// master restart, without altering the blocking semantics of any of
// them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the metric families besd registers against a
// prometheus.Registerer at start-up.
type Registry struct {
	ConnectionsAccepted prometheus.Counter
	SessionsActive      prometheus.Gauge
	SessionsTotal       *prometheus.CounterVec
	AdminCommandsTotal  *prometheus.CounterVec
	MasterRestarts      prometheus.Counter
}

// NewRegistry builds the metric families and registers them against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "besd",
			Name:      "connections_accepted_total",
			Help:      "Total connections accepted on the PPT data port.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "besd",
			Name:      "sessions_active",
			Help:      "Number of PPT sessions currently being served.",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "besd",
			Name:      "sessions_total",
			Help:      "Total PPT sessions completed, by outcome.",
		}, []string{"outcome"}),
		AdminCommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "besd",
			Name:      "admin_commands_total",
			Help:      "Total admin command documents processed; the admin channel counts every document under command=\"dispatch\".",
		}, []string{"command"}),
		MasterRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "besd",
			Name:      "master_restarts_total",
			Help:      "Total times the supervisor has relaunched the master worker.",
		}),
	}

	reg.MustRegister(
		r.ConnectionsAccepted,
		r.SessionsActive,
		r.SessionsTotal,
		r.AdminCommandsTotal,
		r.MasterRestarts,
	)
	return r
}

// SessionOutcome labels the terminal state of one PPT session for the
// SessionsTotal counter vector.
type SessionOutcome string

const (
	OutcomeNormal SessionOutcome = "normal"
	OutcomeError  SessionOutcome = "error"
	OutcomeFatal  SessionOutcome = "fatal"
)
