// Package observability holds Prometheus collectors shared across packages.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsIngestedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "health_analytics",
		Subsystem: "ingestion",
		Name:      "events_ingested_total",
		Help:      "Number of raw health events accepted for ingestion, duplicates included.",
	})

	summariesCalculatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "health_analytics",
		Subsystem: "aggregation",
		Name:      "summaries_calculated_total",
		Help:      "Number of daily summary rows written (insert or overwrite).",
	})

	lastSummaryGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "health_analytics",
		Subsystem: "aggregation",
		Name:      "last_summary_calculated_timestamp_seconds",
		Help:      "Unix timestamp of the most recent summary calculation committed to Postgres.",
	})
)

func init() {
	prometheus.MustRegister(eventsIngestedCounter, summariesCalculatedCounter, lastSummaryGauge)
}

// RecordEventsIngested bumps the ingestion counter for a committed batch.
func RecordEventsIngested(count int) {
	if count <= 0 {
		return
	}
	eventsIngestedCounter.Add(float64(count))
}

// RecordSummariesCalculated updates the aggregation counters after a run commits.
func RecordSummariesCalculated(count int, ts time.Time) {
	if count <= 0 {
		return
	}
	summariesCalculatedCounter.Add(float64(count))
	if !ts.IsZero() {
		lastSummaryGauge.Set(float64(ts.Unix()))
	}
}
