package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Workflow holds the collectors updated by the approval workflow. Each
// instance owns its registry so tests can build as many as they like.
type Workflow struct {
	registry *prometheus.Registry

	Submissions      *prometheus.CounterVec
	Decisions        *prometheus.CounterVec
	Errors           *prometheus.CounterVec
	FundsTransferred prometheus.Counter
	InvoicedOffsets  *prometheus.CounterVec
}

func New() *Workflow {
	reg := prometheus.NewRegistry()
	m := &Workflow{
		registry: reg,
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ber_submissions_total",
			Help: "Records submitted, by entity kind.",
		}, []string{"kind"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ber_decisions_total",
			Help: "Approval decisions recorded, by entity kind and outcome.",
		}, []string{"kind", "decision"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ber_workflow_errors_total",
			Help: "Failed workflow operations, by operation and error code.",
		}, []string{"op", "code"}),
		FundsTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ber_funds_transferred_total",
			Help: "Sum of approved BCR transfer amounts.",
		}),
		InvoicedOffsets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ber_afe_offsets_total",
			Help: "Offset ledger entries posted, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.Submissions,
		m.Decisions,
		m.Errors,
		m.FundsTransferred,
		m.InvoicedOffsets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Workflow) Registry() *prometheus.Registry { return m.registry }

func (m *Workflow) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
