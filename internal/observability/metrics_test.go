package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRegistered_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		EnsureRegistered()
		EnsureRegistered()
	})
}

func TestRecordSessionLifecycle(t *testing.T) {
	m := getMetrics()
	started := testutil.ToFloat64(m.sessionsStarted)
	finalized := testutil.ToFloat64(m.sessionsFinalized)

	RecordSessionStarted()
	SetActiveSession(true)
	assert.Equal(t, started+1, testutil.ToFloat64(m.sessionsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSession))

	RecordSessionFinalized()
	SetActiveSession(false)
	assert.Equal(t, finalized+1, testutil.ToFloat64(m.sessionsFinalized))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeSession))
}

func TestRecordFlush(t *testing.T) {
	m := getMetrics()
	errors := testutil.ToFloat64(m.flushErrors)

	RecordFlush(5*time.Millisecond, true)
	assert.Equal(t, errors, testutil.ToFloat64(m.flushErrors))

	RecordFlush(5*time.Millisecond, false)
	assert.Equal(t, errors+1, testutil.ToFloat64(m.flushErrors))
}

func TestRecordMessages(t *testing.T) {
	m := getMetrics()
	captured := testutil.ToFloat64(m.messagesCaptured)
	dropped := testutil.ToFloat64(m.messagesDropped.WithLabelValues("no_session"))

	RecordMessageCaptured()
	RecordMessageDropped("no_session")

	assert.Equal(t, captured+1, testutil.ToFloat64(m.messagesCaptured))
	assert.Equal(t, dropped+1, testutil.ToFloat64(m.messagesDropped.WithLabelValues("no_session")))
}

func TestRecordGatewayEvent(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.gatewayEventsTotal.WithLabelValues("message_received", "error"))

	RecordGatewayEvent("message_received", false)
	SetGatewayClients(3)

	assert.Equal(t, before+1, testutil.ToFloat64(m.gatewayEventsTotal.WithLabelValues("message_received", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.gatewayClients))
	SetGatewayClients(0)
}

func TestIndexMetrics(t *testing.T) {
	m := getMetrics()

	RecordIndexSearch(2 * time.Millisecond)
	SetIndexedMessages(42)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.indexedMessages))
	assert.Equal(t, 1, testutil.CollectAndCount(m.indexSearchLatency))
}

func TestMetricsHandler(t *testing.T) {
	RecordEventDispatched("connection_established")
	RecordStatusReport()

	server := httptest.NewServer(MetricsHandler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	for _, name := range []string{
		"chatlog_sessions_started_total",
		"chatlog_active_session",
		"chatlog_flush_duration_seconds",
		"chatlog_events_dispatched_total",
		"chatlog_status_reports_total",
	} {
		assert.Contains(t, string(body), name)
	}
}
