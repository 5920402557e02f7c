package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EvaluationsTotal          *prometheus.CounterVec
	EvaluationDuration        prometheus.Histogram
	ClassifierFailuresTotal   *prometheus.CounterVec
	ClassifierCallDuration    prometheus.Histogram
	EscalationsCreatedTotal   *prometheus.CounterVec
	PendingEscalationsCount   prometheus.Gauge
	ClaimAttemptsTotal        *prometheus.CounterVec
	EscalationsExpiredTotal   prometheus.Counter
	NotificationsSentTotal    *prometheus.CounterVec
	NotificationFailuresTotal *prometheus.CounterVec
	SweeperLeaderChanges      prometheus.Counter
	StoreOperationDuration    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crisis_evaluations_total",
			Help: "Total number of crisis evaluations by urgency and source",
		}, []string{"urgency", "source"}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "crisis_evaluation_duration_seconds",
			Help:    "Time taken to run the full detection cascade",
			Buckets: prometheus.DefBuckets,
		}),
		ClassifierFailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remote_classifier_failures_total",
			Help: "Total number of remote classifier failures by reason",
		}, []string{"reason"}),
		ClassifierCallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "remote_classifier_call_duration_seconds",
			Help:    "Time taken for remote classifier calls",
			Buckets: prometheus.DefBuckets,
		}),
		EscalationsCreatedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "escalations_created_total",
			Help: "Total number of escalations created by urgency",
		}, []string{"urgency"}),
		PendingEscalationsCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pending_escalations_count",
			Help: "Current number of escalations awaiting a claim",
		}),
		ClaimAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_claim_attempts_total",
			Help: "Total number of claim attempts by outcome",
		}, []string{"outcome"}),
		EscalationsExpiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "escalations_expired_total",
			Help: "Total number of escalations expired unclaimed",
		}),
		NotificationsSentTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crisis_notifications_sent_total",
			Help: "Total number of crisis notifications sent by room kind",
		}, []string{"room"}),
		NotificationFailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crisis_notification_failures_total",
			Help: "Total number of failed notification deliveries by room kind",
		}, []string{"room"}),
		SweeperLeaderChanges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_leader_changes_total",
			Help: "Total number of expiry sweeper leader changes",
		}),
		StoreOperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Time taken for persistence operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}
