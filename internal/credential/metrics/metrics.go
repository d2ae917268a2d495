package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for credential lifecycle operations.
type Metrics struct {
	CredentialsIssued    prometheus.Counter
	CredentialsRevoked   prometheus.Counter
	IssuanceConflicts    prometheus.Counter
	IssuanceFailures     *prometheus.CounterVec
	CatalogFallbacks     prometheus.Counter
	IssueDurationMs      prometheus.Histogram
	RevocationDurationMs prometheus.Histogram
}

// New registers and returns credential metrics collectors.
func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accredo_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		CredentialsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accredo_credentials_revoked_total",
			Help: "Total number of credentials revoked",
		}),
		IssuanceConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accredo_issuance_conflicts_total",
			Help: "Total number of duplicate-id issuance attempts",
		}),
		IssuanceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "accredo_issuance_failures_total",
			Help: "Total number of failed issuance attempts",
		}, []string{"reason"}),
		CatalogFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accredo_catalog_fallbacks_total",
			Help: "Total number of issuances that fell back to raw course identifiers",
		}),
		IssueDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "accredo_issue_duration_ms",
			Help:    "Duration of credential issuance in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		RevocationDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "accredo_revocation_duration_ms",
			Help:    "Duration of credential revocation in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}
}
