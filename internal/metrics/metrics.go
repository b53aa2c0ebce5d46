// Package metrics holds the Prometheus collectors for the animation scheduler.
//
// Collectors live on a private registry so that tests and multiple scheduler
// instances never collide on the global default registry. Every method is
// safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "animsched"

// Drop reasons used as the "reason" label.
const (
	ReasonCycle    = "cycle"
	ReasonTrim     = "trim"
	ReasonOverload = "overload"
	ReasonStale    = "stale"
)

type Metrics struct {
	reg *prometheus.Registry

	scheduled prometheus.Counter
	fired     prometheus.Counter
	dropped   *prometheus.CounterVec
	panics    prometheus.Counter
	cycles    prometheus.Counter
	replays   prometheus.Counter
	notices   prometheus.Counter
	backlog   prometheus.Gauge
	guard     prometheus.Gauge
	lateness  prometheus.Histogram
}

// New registers all collectors (plus Go runtime collectors) on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		scheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_scheduled_total",
			Help: "Animation jobs accepted into the job store.",
		}),
		fired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_fired_total",
			Help: "Animation jobs whose action was invoked.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_dropped_total",
			Help: "Animation jobs discarded before firing, by reason.",
		}, []string{"reason"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "action_panics_total",
			Help: "Animation actions that panicked while firing.",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Cycle resets, including the synthetic cycle started by a replay.",
		}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "replays_total",
			Help: "Recorded batches replayed.",
		}),
		notices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "overload_notices_total",
			Help: "Transitions into the suppressed state (one notice each).",
		}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "backlog_jobs",
			Help: "Pending jobs in the job store after the last dispatch tick.",
		}),
		guard: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "overload_suppressed",
			Help: "1 while animations are suppressed because the clock is too fast.",
		}),
		lateness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "dispatch_lateness_seconds",
			Help:    "Time between a job's due offset and the moment it fired.",
			Buckets: []float64{.001, .005, .01, .02, .04, .08, .16, .32, .64, 1.28},
		}),
	}
	reg.MustRegister(
		m.scheduled, m.fired, m.dropped, m.panics, m.cycles, m.replays,
		m.notices, m.backlog, m.guard, m.lateness,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) JobsScheduled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.scheduled.Add(float64(n))
}

func (m *Metrics) JobFired(lateness time.Duration) {
	if m == nil {
		return
	}
	m.fired.Inc()
	if lateness < 0 {
		lateness = 0
	}
	m.lateness.Observe(lateness.Seconds())
}

func (m *Metrics) JobsDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) ActionPanicked() {
	if m == nil {
		return
	}
	m.panics.Inc()
}

func (m *Metrics) CycleStarted() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

func (m *Metrics) Replayed() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

func (m *Metrics) NoticeShown() {
	if m == nil {
		return
	}
	m.notices.Inc()
}

func (m *Metrics) SetBacklog(n int) {
	if m == nil {
		return
	}
	m.backlog.Set(float64(n))
}

func (m *Metrics) SetSuppressed(on bool) {
	if m == nil {
		return
	}
	if on {
		m.guard.Set(1)
		return
	}
	m.guard.Set(0)
}
