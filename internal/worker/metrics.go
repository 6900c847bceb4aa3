package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "health_analytics",
		Subsystem: "worker",
		Name:      "notifications_processed_total",
		Help:      "Number of notifications whose aggregation run completed.",
	}, []string{"topic"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "health_analytics",
		Subsystem: "worker",
		Name:      "handler_errors_total",
		Help:      "Number of failed aggregation attempts per topic.",
	}, []string{"topic"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "health_analytics",
		Subsystem: "worker",
		Name:      "decode_errors_total",
		Help:      "Number of malformed notifications per topic.",
	}, []string{"topic"})

	deadLetterCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "health_analytics",
		Subsystem: "worker",
		Name:      "notifications_dead_lettered_total",
		Help:      "Number of notifications parked in the dead-letter table.",
	}, []string{"topic"})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "health_analytics",
		Subsystem: "worker",
		Name:      "aggregation_run_duration_seconds",
		Help:      "Time spent on one aggregation run, lock to unlock.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "health_analytics",
		Subsystem: "worker",
		Name:      "last_notification_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successfully processed notification per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, deadLetterCounter, runDuration, lastMessageGauge)
}

func recordProcessed(topic string, ts time.Time) {
	processedCounter.WithLabelValues(topic).Inc()
	if !ts.IsZero() {
		lastMessageGauge.WithLabelValues(topic).Set(float64(ts.Unix()))
	}
}

func recordHandlerError(topic string) {
	handlerErrorCounter.WithLabelValues(topic).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordDeadLettered(topic string) {
	deadLetterCounter.WithLabelValues(topic).Inc()
}

func recordRunDuration(d time.Duration) {
	runDuration.Observe(d.Seconds())
}
