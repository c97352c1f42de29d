// Package metrics exposes Prometheus collectors for the payment core. A
// Metrics value is registered on an injected registry and plugged into the
// session store, webhook dispatcher and HTTP server as their observer.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "blinkpay"

// Metrics holds every collector. Construct one per registry with New.
type Metrics struct {
	sessionsCreated  prometheus.Counter
	sessionsRemoved  *prometheus.CounterVec
	backupsGenerated prometheus.Counter
	backupRestores   *prometheus.CounterVec
	webhooks         *prometheus.CounterVec
	quotes           *prometheus.CounterVec
	intents          *prometheus.CounterVec
	auditDropped     prometheus.Counter
	httpDuration     *prometheus.HistogramVec

	factory promauto.Factory
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		factory: f,
		sessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Sessions created.",
		}),
		sessionsRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "removed_total",
			Help:      "Sessions removed, by reason.",
		}, []string{"reason"}),
		backupsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "backups_generated_total",
			Help:      "Backup bundles issued.",
		}),
		backupRestores: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "backup_restores_total",
			Help:      "Backup restore attempts, by result.",
		}, []string{"result"}),
		webhooks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Webhook dispatches, by status.",
		}, []string{"status"}),
		quotes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "created_total",
			Help:      "Quotes issued, by fiat currency.",
		}, []string{"currency"}),
		intents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intent",
			Name:      "built_total",
			Help:      "Unsigned transactions built, by kind.",
		}, []string{"kind"}),
		auditDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "sink_dropped_total",
			Help:      "Audit events dropped by a full async sink.",
		}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"method", "route", "code"}),
	}
}

// SessionCreated implements session.Observer.
func (m *Metrics) SessionCreated() { m.sessionsCreated.Inc() }

// SessionRemoved implements session.Observer.
func (m *Metrics) SessionRemoved(reason string) { m.sessionsRemoved.WithLabelValues(reason).Inc() }

// BackupGenerated implements session.Observer.
func (m *Metrics) BackupGenerated() { m.backupsGenerated.Inc() }

// BackupRestored implements session.Observer.
func (m *Metrics) BackupRestored(ok bool) {
	result := "failed"
	if ok {
		result = "ok"
	}
	m.backupRestores.WithLabelValues(result).Inc()
}

// WebhookDelivered implements webhook.Observer.
func (m *Metrics) WebhookDelivered(status string) { m.webhooks.WithLabelValues(status).Inc() }

func (m *Metrics) QuoteCreated(currency string) { m.quotes.WithLabelValues(currency).Inc() }

func (m *Metrics) IntentBuilt(kind string) { m.intents.WithLabelValues(kind).Inc() }

// AuditDropped is the drop hook for audit.NewAsyncSink.
func (m *Metrics) AuditDropped() { m.auditDropped.Inc() }

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}

// TrackActiveSessions exports fn as the live session gauge.
func (m *Metrics) TrackActiveSessions(fn func() int) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "active",
		Help:      "Sessions currently held.",
	}, func() float64 { return float64(fn()) })
}
