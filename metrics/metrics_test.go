package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SessionCreated()
	m.SessionCreated()
	m.SessionRemoved("evicted")
	m.BackupGenerated()
	m.BackupRestored(true)
	m.BackupRestored(false)
	m.BackupRestored(false)
	m.WebhookDelivered("sent")
	m.WebhookDelivered("ignored")
	m.QuoteCreated("USD")
	m.IntentBuilt("pay_with_split")
	m.AuditDropped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsRemoved.WithLabelValues("evicted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backupsGenerated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backupRestores.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.backupRestores.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("ignored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotes.WithLabelValues("USD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.intents.WithLabelValues("pay_with_split")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditDropped))
}

func TestActiveSessionsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	n := 3
	m.TrackActiveSessions(func() int { return n })

	expected := `
# HELP blinkpay_session_active Sessions currently held.
# TYPE blinkpay_session_active gauge
blinkpay_session_active 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "blinkpay_session_active"))
}

func TestHTTPHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveHTTP("GET", "/healthz", 200, 3*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
