// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NodeExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "node_executions_total",
			Help: "Total number of node executions by outcome",
		},
		[]string{"node", "outcome"},
	)

	NodeItemErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "node_item_errors_total",
			Help: "Total number of failed input items by error code",
		},
		[]string{"node", "error_code"},
	)

	RenderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_request_duration_seconds",
			Help:    "Duration of rendering service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node", "status"},
	)

	WebhookResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_responses_total",
			Help: "Total number of webhook responses by status code",
		},
		[]string{"node", "status_code"},
	)

	ExecutionsParked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executions_parked_total",
			Help: "Total number of executions parked until resumed",
		},
		[]string{"node"},
	)

	ResumeCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_callbacks_total",
			Help: "Total number of resume callbacks by outcome",
		},
		[]string{"outcome"},
	)

	ProcessStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "process_starts_total",
			Help: "Total number of processes started by delivery triggers",
		},
		[]string{"process_id", "outcome"},
	)
)
