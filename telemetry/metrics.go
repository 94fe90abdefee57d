// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status check results used as the "result" label.
const (
	ResultOnline    = "online"
	ResultOffline   = "offline"
	ResultError     = "error"
	ResultMalformed = "malformed"
)

// Notification outcomes used as the "outcome" label.
const (
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeFallback = "fallback"
)

var (
	once sync.Once

	// Counters
	PollCycles    prometheus.Counter
	StatusChecks  *prometheus.CounterVec
	Notifications *prometheus.CounterVec

	// Histograms (seconds)
	CycleDuration prometheus.Observer

	// Gauges
	BroadcasterLive *prometheus.GaugeVec // 1=live,0=offline
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PollCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "golive_poll_cycles_total", Help: "Number of completed poll cycles"})
		StatusChecks = promauto.NewCounterVec(prometheus.CounterOpts{Name: "golive_status_checks_total", Help: "Status queries by result (online, offline, error, malformed)"}, []string{"result"})
		Notifications = promauto.NewCounterVec(prometheus.CounterOpts{Name: "golive_notifications_total", Help: "Go-live notifications by broadcaster and outcome"}, []string{"broadcaster", "outcome"})
		CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "golive_poll_cycle_duration_seconds", Help: "Duration of one poll cycle over all broadcasters", Buckets: prometheus.DefBuckets})
		BroadcasterLive = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "golive_broadcaster_live", Help: "Last-known live state per broadcaster (1=live, 0=offline)"}, []string{"broadcaster"})
	})
}

// ObserveCycle counts a finished poll cycle and records its duration.
func ObserveCycle(d time.Duration) {
	if PollCycles != nil {
		PollCycles.Inc()
	}
	if CycleDuration != nil {
		CycleDuration.Observe(d.Seconds())
	}
}

// RecordStatusCheck counts one status query by result.
func RecordStatusCheck(result string) {
	if StatusChecks != nil {
		StatusChecks.WithLabelValues(result).Inc()
	}
}

// RecordNotification counts one notification attempt.
func RecordNotification(broadcaster, outcome string) {
	if Notifications != nil {
		Notifications.WithLabelValues(broadcaster, outcome).Inc()
	}
}

// SetBroadcasterLive sets the live gauge for a broadcaster.
func SetBroadcasterLive(broadcaster string, live bool) {
	if BroadcasterLive == nil {
		return
	}
	if live {
		BroadcasterLive.WithLabelValues(broadcaster).Set(1)
	} else {
		BroadcasterLive.WithLabelValues(broadcaster).Set(0)
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
