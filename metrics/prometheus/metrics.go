// Package prometheus provides Prometheus metrics for the streaming client.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sightkit"

var (
	// attemptsActive is a gauge of connect attempts that have not closed.
	attemptsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attempts_active",
			Help:      "Number of connect attempts currently open or connecting",
		},
	)

	// connectAttemptsTotal counts connect attempts.
	connectAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Total number of connect attempts",
		},
		[]string{"kind"}, // kind: initial, reconnect
	)

	// attemptDuration is a histogram of how long attempts stayed up.
	attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Lifetime of connect attempts in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900, 3600},
		},
		[]string{"reason"}, // reason: requested, error, remote
	)

	// reconnectsScheduledTotal counts scheduled automatic reconnects.
	reconnectsScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_scheduled_total",
			Help:      "Total number of automatic reconnects scheduled",
		},
	)

	// disconnectsTotal counts sessions that exhausted their reconnect budget.
	disconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total number of sessions that gave up reconnecting",
		},
	)

	// framesSentTotal counts transmitted frames.
	framesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of frames sent",
		},
		[]string{"target_lang"},
	)

	// frameBytes is a histogram of transmitted frame payload sizes.
	frameBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_bytes",
			Help:      "Size of transmitted frame payloads in bytes",
			Buckets:   prometheus.ExponentialBuckets(4096, 2, 8), // 4KiB .. 512KiB
		},
	)

	// captureFailuresTotal counts swallowed capture failures.
	captureFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_failures_total",
			Help:      "Total number of frame capture failures",
		},
	)

	// resultsTotal counts parsed results by status.
	resultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Total number of detection results received",
		},
		[]string{"status"}, // status: success, error
	)

	// protocolErrorsTotal counts discarded malformed messages.
	protocolErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total number of malformed inbound messages",
		},
	)

	// languageChangesTotal counts target language switches.
	languageChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "language_changes_total",
			Help:      "Total number of target language changes",
		},
		[]string{"to"},
	)
)

// allMetrics is the list of collectors the exporter registers.
var allMetrics = []prometheus.Collector{
	attemptsActive,
	connectAttemptsTotal,
	attemptDuration,
	reconnectsScheduledTotal,
	disconnectsTotal,
	framesSentTotal,
	frameBytes,
	captureFailuresTotal,
	resultsTotal,
	protocolErrorsTotal,
	languageChangesTotal,
}

// RecordAttemptStart records a new connect attempt.
func RecordAttemptStart(reconnect bool) {
	attemptsActive.Inc()
	kind := "initial"
	if reconnect {
		kind = "reconnect"
	}
	connectAttemptsTotal.WithLabelValues(kind).Inc()
}

// RecordAttemptEnd records the close of an attempt.
func RecordAttemptEnd(reason string, seconds float64) {
	attemptsActive.Dec()
	attemptDuration.WithLabelValues(reason).Observe(seconds)
}

// RecordReconnectScheduled records a scheduled reconnect.
func RecordReconnectScheduled() {
	reconnectsScheduledTotal.Inc()
}

// RecordDisconnect records a session giving up.
func RecordDisconnect() {
	disconnectsTotal.Inc()
}

// RecordFrameSent records one transmitted frame.
func RecordFrameSent(lang string, size int) {
	framesSentTotal.WithLabelValues(lang).Inc()
	frameBytes.Observe(float64(size))
}

// RecordCaptureFailure records a capture failure.
func RecordCaptureFailure() {
	captureFailuresTotal.Inc()
}

// RecordResult records a parsed result.
func RecordResult(status string) {
	resultsTotal.WithLabelValues(status).Inc()
}

// RecordProtocolError records a malformed message.
func RecordProtocolError() {
	protocolErrorsTotal.Inc()
}

// RecordLanguageChange records a language switch.
func RecordLanguageChange(to string) {
	languageChangesTotal.WithLabelValues(to).Inc()
}
