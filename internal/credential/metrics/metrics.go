package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the credential module. Creation and scan
// counters are labelled by kind and outcome so gate dashboards can split
// guest traffic from vehicle traffic.
type Metrics struct {
	CredentialsCreated *prometheus.CounterVec
	ScansTotal         *prometheus.CounterVec
	MalformedPayloads  prometheus.Counter
	SagaCompensations  prometheus.Counter
	PINRetries         prometheus.Counter
	CreateDuration     prometheus.Histogram
	VerifyDuration     prometheus.Histogram
}

// New creates a Metrics instance with all credential module metrics registered
// on the default registry.
func New() *Metrics {
	return &Metrics{
		CredentialsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatepass_credentials_created_total",
			Help: "Total number of credentials created, by kind",
		}, []string{"kind"}),
		ScansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatepass_scans_total",
			Help: "Total number of gate scans, by kind and result",
		}, []string{"kind", "result"}),
		MalformedPayloads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_malformed_payloads_total",
			Help: "Total number of QR payloads that could not be decoded",
		}),
		SagaCompensations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_create_compensations_total",
			Help: "Total number of credential creations rolled back after a step failure",
		}),
		PINRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_pin_allocation_retries_total",
			Help: "Total number of PIN allocation attempts that hit an active duplicate",
		}),
		CreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatepass_create_duration_seconds",
			Help:    "Duration of credential creation including asset rendering",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatepass_verify_duration_seconds",
			Help:    "Duration of scan verification (gate critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementCreated records a successful credential creation.
func (m *Metrics) IncrementCreated(kind string) {
	m.CredentialsCreated.WithLabelValues(kind).Inc()
}

// IncrementScan records a scan outcome.
func (m *Metrics) IncrementScan(kind, result string) {
	m.ScansTotal.WithLabelValues(kind, result).Inc()
}

// ObserveCreate records the duration of a creation. Call with time.Now() at
// the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

// ObserveVerify records the duration of a verification.
func (m *Metrics) ObserveVerify(start time.Time) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}
