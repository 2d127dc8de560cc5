package workers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports run statistics to prometheus. A nil *Metrics is a no-op.
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	runsInFlight   prometheus.Gauge
	scheduledTasks prometheus.Gauge
}

// NewMetrics creates and registers the collectors on reg, or on the
// default registerer when reg is nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of task runs",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of task runs",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 900, 3600},
			},
			[]string{"status"},
		),
		runsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "runs_in_flight",
				Help:      "Number of task runs currently executing",
			},
		),
		scheduledTasks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduled_tasks",
				Help:      "Number of tasks registered with the scheduler",
			},
		),
	}

	reg.MustRegister(m.runsTotal, m.runDuration, m.runsInFlight, m.scheduledTasks)
	return m
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(d.Seconds())
}

// SetScheduled sets the number of scheduled tasks.
func (m *Metrics) SetScheduled(n int) {
	if m == nil {
		return
	}
	m.scheduledTasks.Set(float64(n))
}

func (m *Metrics) runStarted() {
	if m != nil {
		m.runsInFlight.Inc()
	}
}

func (m *Metrics) runFinished() {
	if m != nil {
		m.runsInFlight.Dec()
	}
}
