// Package metrics exposes prometheus counters for the moderation engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	MessagesScanned  prometheus.Counter
	Violations       *prometheus.CounterVec
	MutesCreated     prometheus.Counter
	MutesLifted      prometheus.Counter
	ReconcilerTicks  prometheus.Counter
	ReconcilerErrors prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		MessagesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_messages_scanned_total",
			Help: "Messages that went through auto-moderation classification.",
		}),
		Violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_violations_total",
			Help: "Auto-moderation violations by kind.",
		}, []string{"kind"}),
		MutesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_mutes_created_total",
			Help: "Mutes written to the sanction ledger.",
		}),
		MutesLifted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_mutes_lifted_total",
			Help: "Mutes deactivated, manually or by the reconciler.",
		}),
		ReconcilerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_reconciler_ticks_total",
			Help: "Completed mute expiry reconciliation sweeps.",
		}),
		ReconcilerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_reconciler_errors_total",
			Help: "Failed lift attempts during reconciliation sweeps.",
		}),
	}

	registry.MustRegister(
		m.MessagesScanned,
		m.Violations,
		m.MutesCreated,
		m.MutesLifted,
		m.ReconcilerTicks,
		m.ReconcilerErrors,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
