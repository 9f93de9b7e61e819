// Package metrics exposes interview counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spigell/interviewd/internal/interview"
)

const namespace = "interviewd"

// Recorder counts turn-level events. It satisfies dialog.Recorder and is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	// Labels: outcome (accepted, command, security_rejection, ...)
	turns *prometheus.CounterVec
	// Labels: from, to
	transitions *prometheus.CounterVec
	// Labels: task (greeting, analysis, reply, hint)
	generationFallbacks *prometheus.CounterVec
	supplierFallbacks   prometheus.Counter
	// Labels: recommendation (strong_hire, hire, borderline, no_hire)
	evaluations *prometheus.CounterVec
	sessions    prometheus.Gauge
}

// New registers the interview collectors together with the Go runtime collectors
// on a dedicated registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Total number of processed candidate turns by outcome",
			},
			[]string{"outcome"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_transitions_total",
				Help:      "Total number of interview stage transitions",
			},
			[]string{"from", "to"},
		),
		generationFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_fallbacks_total",
				Help:      "Total number of times a templated text replaced an unavailable generation",
			},
			[]string{"task"},
		),
		supplierFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "supplier_fallbacks_total",
				Help:      "Total number of problems taken from the embedded pool after the supplier failed",
			},
		),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of completed evaluations by hiring recommendation",
			},
			[]string{"recommendation"},
		),
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Number of sessions currently held in memory",
			},
		),
	}

	r.registry.MustRegister(
		r.turns,
		r.transitions,
		r.generationFallbacks,
		r.supplierFallbacks,
		r.evaluations,
		r.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Turn(outcome string) {
	r.turns.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Transition(from, to interview.Stage) {
	r.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (r *Recorder) GenerationFallback(task string) {
	r.generationFallbacks.WithLabelValues(task).Inc()
}

func (r *Recorder) SupplierFallback() {
	r.supplierFallbacks.Inc()
}

func (r *Recorder) Evaluated(recommendation string) {
	r.evaluations.WithLabelValues(recommendation).Inc()
}

// SessionOpened and SessionClosed track the in-memory session registry.
func (r *Recorder) SessionOpened() { r.sessions.Inc() }
func (r *Recorder) SessionClosed() { r.sessions.Dec() }

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
