package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	sessionsStarted    prometheus.Counter
	sessionsFinalized  prometheus.Counter
	sessionSetupErrors prometheus.Counter
	activeSession      prometheus.Gauge
	messagesCaptured   prometheus.Counter
	messagesDropped    *prometheus.CounterVec
	flushDuration      prometheus.Histogram
	flushErrors        prometheus.Counter
	eventsDispatched   *prometheus.CounterVec
	gatewayClients     prometheus.Gauge
	gatewayEventsTotal *prometheus.CounterVec
	statusReportsTotal prometheus.Counter
	indexSearchLatency prometheus.Histogram
	indexedMessages    prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			sessionsStarted: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "chatlog_sessions_started_total",
					Help: "Total chat logging sessions started.",
				},
			),
			sessionsFinalized: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "chatlog_sessions_finalized_total",
					Help: "Total chat logging sessions finalized.",
				},
			),
			sessionSetupErrors: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "chatlog_session_setup_errors_total",
					Help: "Total failed session starts (directory creation, id generation).",
				},
			),
			activeSession: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "chatlog_active_session",
					Help: "Whether a chat logging session is active (1) or not (0).",
				},
			),
			messagesCaptured: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "chatlog_messages_captured_total",
					Help: "Total chat messages appended to a session.",
				},
			),
			messagesDropped: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chatlog_messages_dropped_total",
					Help: "Total chat messages dropped by reason.",
				},
				[]string{"reason"},
			),
			flushDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "chatlog_flush_duration_seconds",
					Help:    "Session file write duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			flushErrors: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "chatlog_flush_errors_total",
					Help: "Total failed session file writes.",
				},
			),
			eventsDispatched: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chatlog_events_dispatched_total",
					Help: "Total host events delivered to the session manager by type.",
				},
				[]string{"type"},
			),
			gatewayClients: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "chatlog_gateway_clients",
					Help: "Current connected gateway websocket clients.",
				},
			),
			gatewayEventsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chatlog_gateway_events_total",
					Help: "Total events received by the gateway by type and status.",
				},
				[]string{"type", "status"},
			),
			statusReportsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "chatlog_status_reports_total",
					Help: "Total scheduled status reports emitted.",
				},
			),
			indexSearchLatency: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "chatlog_index_search_duration_seconds",
					Help:    "Message index search latency in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			indexedMessages: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "chatlog_indexed_messages",
					Help: "Messages currently held in the search index.",
				},
			),
		}

		prometheus.MustRegister(
			m.sessionsStarted,
			m.sessionsFinalized,
			m.sessionSetupErrors,
			m.activeSession,
			m.messagesCaptured,
			m.messagesDropped,
			m.flushDuration,
			m.flushErrors,
			m.eventsDispatched,
			m.gatewayClients,
			m.gatewayEventsTotal,
			m.statusReportsTotal,
			m.indexSearchLatency,
			m.indexedMessages,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordSessionStarted() {
	getMetrics().sessionsStarted.Inc()
}

func RecordSessionFinalized() {
	getMetrics().sessionsFinalized.Inc()
}

func RecordSessionSetupError() {
	getMetrics().sessionSetupErrors.Inc()
}

func SetActiveSession(active bool) {
	value := 0.0
	if active {
		value = 1.0
	}
	getMetrics().activeSession.Set(value)
}

func RecordMessageCaptured() {
	getMetrics().messagesCaptured.Inc()
}

func RecordMessageDropped(reason string) {
	getMetrics().messagesDropped.WithLabelValues(reason).Inc()
}

func RecordFlush(duration time.Duration, success bool) {
	m := getMetrics()
	m.flushDuration.Observe(duration.Seconds())
	if !success {
		m.flushErrors.Inc()
	}
}

func RecordEventDispatched(eventType string) {
	getMetrics().eventsDispatched.WithLabelValues(eventType).Inc()
}

func SetGatewayClients(count int) {
	getMetrics().gatewayClients.Set(float64(count))
}

func RecordGatewayEvent(eventType string, success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().gatewayEventsTotal.WithLabelValues(eventType, status).Inc()
}

func RecordStatusReport() {
	getMetrics().statusReportsTotal.Inc()
}

func RecordIndexSearch(duration time.Duration) {
	getMetrics().indexSearchLatency.Observe(duration.Seconds())
}

func SetIndexedMessages(count int) {
	getMetrics().indexedMessages.Set(float64(count))
}
