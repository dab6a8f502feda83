package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	lifecycleTransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "umbra",
			Subsystem: "lifecycle",
			Name:      "transfers_total",
			Help:      "Transfers that reached a terminal step",
		},
		[]string{"direction", "outcome"}, // send/claim, finalized/failed/timed_out
	)

	trackerPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "umbra",
			Subsystem: "tracker",
			Name:      "polls_total",
			Help:      "Signature status polls by observed result",
		},
		[]string{"result"}, // unknown, submitted, confirmed, finalized, failed, error
	)

	trackerSettleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "umbra",
			Subsystem: "tracker",
			Name:      "settle_seconds",
			Help:      "Time from first poll until a signature settled or timed out",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
		},
		[]string{"outcome"},
	)
)

type LifecycleMetrics struct{}

func NewLifecycleMetrics() *LifecycleMetrics {
	return &LifecycleMetrics{}
}

func (m *LifecycleMetrics) RecordTransfer(direction, outcome string) {
	lifecycleTransfersTotal.WithLabelValues(direction, outcome).Inc()
}

type TrackerMetrics struct{}

func NewTrackerMetrics() *TrackerMetrics {
	return &TrackerMetrics{}
}

func (m *TrackerMetrics) RecordPoll(result string) {
	trackerPollsTotal.WithLabelValues(result).Inc()
}

func (m *TrackerMetrics) RecordSettled(outcome string, took time.Duration) {
	trackerSettleDuration.WithLabelValues(outcome).Observe(took.Seconds())
}
