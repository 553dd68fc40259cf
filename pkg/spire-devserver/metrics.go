package spiredevserver

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultAttested = "attested"
	resultFailed   = "failed"
	resultRejected = "rejected"

	svidKindX509 = "x509"
	svidKindJWT  = "jwt"
)

// Metrics holds the server's Prometheus instrumentation. A nil *Metrics
// records nothing.
type Metrics struct {
	attestations *prometheus.CounterVec
	svidsIssued  *prometheus.CounterVec
}

// NewMetrics creates the server metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attestations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "minispire",
				Name:      "attestation_total",
				Help:      "Total connection attestations by result",
			},
			[]string{"result"},
		),
		svidsIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "minispire",
				Name:      "svid_issued_total",
				Help:      "Total SVIDs minted by kind",
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(m.attestations, m.svidsIssued)
	return m
}

func (m *Metrics) attestation(result string) {
	if m == nil {
		return
	}
	m.attestations.WithLabelValues(result).Inc()
}

func (m *Metrics) svidIssued(kind string) {
	if m == nil {
		return
	}
	m.svidsIssued.WithLabelValues(kind).Inc()
}
