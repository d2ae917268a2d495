package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the credit-transfer workflow.
type Metrics struct {
	RequestsCreated   prometheus.Counter
	RequestsApproved  prometheus.Counter
	RequestsRejected  prometheus.Counter
	ValidationFailing *prometheus.CounterVec
}

// New registers and returns transfer metrics collectors.
func New() *Metrics {
	return &Metrics{
		RequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accredo_transfer_requests_total",
			Help: "Total number of transfer requests created",
		}),
		RequestsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accredo_transfer_approved_total",
			Help: "Total number of transfer requests approved",
		}),
		RequestsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accredo_transfer_rejected_total",
			Help: "Total number of transfer requests rejected",
		}),
		ValidationFailing: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "accredo_transfer_validation_failures_total",
			Help: "Total number of transfer requests rejected at validation",
		}, []string{"code"}),
	}
}
