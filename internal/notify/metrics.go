package notify

import "github.com/prometheus/client_golang/prometheus"

var publishedCounter = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "health_analytics",
	Subsystem: "notify",
	Name:      "notifications_published_total",
	Help:      "Number of ingestion notifications successfully published to Kafka.",
})

func init() {
	prometheus.MustRegister(publishedCounter)
}

func recordPublished() {
	publishedCounter.Inc()
}
