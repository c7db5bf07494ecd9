package syncer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	runsTotal     *prometheus.CounterVec
	recordsTotal  *prometheus.CounterVec
	notifications *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastSuccess   prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		runsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leavesync",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of sync passes by trigger and result.",
		}, []string{"trigger", "result"}),
		recordsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leavesync",
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Vacation requests processed by outcome.",
		}, []string{"outcome"}),
		notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leavesync",
			Subsystem: "sync",
			Name:      "notifications_total",
			Help:      "Status emails sent by status.",
		}, []string{"status"}),
		runDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "leavesync",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of a full sync pass.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		lastSuccess: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "leavesync",
			Subsystem: "sync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last pass that finished without a top-level error.",
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
