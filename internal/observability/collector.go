package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes the externally observable progress of anonymization runs.
// The generalization driver performs no I/O itself; every escalation and
// suppression step is reported here.
type Collector struct {
	runsTotal         *prometheus.CounterVec
	escalationSteps   prometheus.Counter
	suppressedRecords prometheus.Counter
	runDuration       prometheus.Histogram
}

// NewCollector creates a collector and registers its metrics. A nil registerer
// falls back to the default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anonymizer_runs_total",
			Help: "Completed anonymization runs by outcome.",
		}, []string{"outcome"}),
		escalationSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anonymizer_escalation_steps_total",
			Help: "Generalization level escalations performed.",
		}),
		suppressedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anonymizer_suppressed_records_total",
			Help: "Records removed by suppression.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "anonymizer_run_duration_seconds",
			Help:    "Wall-clock duration of anonymization runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}

	reg.MustRegister(c.runsTotal, c.escalationSteps, c.suppressedRecords, c.runDuration)
	return c
}

// RunCompleted records a finished run with its terminal outcome.
func (c *Collector) RunCompleted(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(elapsed.Seconds())
}

// EscalationStep records a single generalization escalation.
func (c *Collector) EscalationStep() {
	if c == nil {
		return
	}
	c.escalationSteps.Inc()
}

// RecordsSuppressed records suppressed rows.
func (c *Collector) RecordsSuppressed(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.suppressedRecords.Add(float64(n))
}
