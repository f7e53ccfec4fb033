// Package metrics exposes the Prometheus instruments for the watch
// pipeline. Instruments register themselves on the default registry at
// init; the serve command mounts promhttp to publish them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaikatsubot_fetches_total",
		Help: "Page observations by outcome (success, not_found, timeout, error).",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kaikatsubot_fetch_duration_seconds",
		Help:    "Wall time of one page observation including the retry.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	cacheReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaikatsubot_cache_reads_total",
		Help: "Cache reads by source (hit, refresh, shared).",
	}, []string{"source"})

	ticksSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kaikatsubot_poll_ticks_skipped_total",
		Help: "Poll ticks skipped because the previous poll was still running.",
	})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaikatsubot_notifications_total",
		Help: "Per-recipient notification deliveries by outcome (sent, failed).",
	}, []string{"outcome"})

	statusChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kaikatsubot_status_changes_total",
		Help: "Availability status transitions that notified subscribers.",
	})

	lastChangeTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kaikatsubot_last_status_change_timestamp_seconds",
		Help: "Unix time of the most recent status transition.",
	})

	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kaikatsubot_subscribers",
		Help: "Number of chats currently subscribed to notifications.",
	})
)

// ObserveFetch records one page observation.
func ObserveFetch(outcome string, d time.Duration) {
	fetchesTotal.WithLabelValues(outcome).Inc()
	fetchDuration.Observe(d.Seconds())
}

// CacheRead records where a cache read was served from.
func CacheRead(source string) {
	cacheReadsTotal.WithLabelValues(source).Inc()
}

// TickSkipped records a coalesced poll tick.
func TickSkipped() {
	ticksSkippedTotal.Inc()
}

// Notification records one delivery attempt.
func Notification(outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
}

// StatusChanged records a status transition.
func StatusChanged() {
	statusChangesTotal.Inc()
	lastChangeTimestamp.SetToCurrentTime()
}

// SetSubscribers publishes the current subscriber count.
func SetSubscribers(n int) {
	subscribersGauge.Set(float64(n))
}
