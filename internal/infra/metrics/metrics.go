package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shopalerts"

// Trigger paths.
const (
	PathWritePath = "write_path"
	PathSweep     = "sweep"
)

// Recorder holds the pipeline collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	alertsTriggered *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	cycles          *prometheus.CounterVec
	sweepDuration   *prometheus.HistogramVec
	alertsCleaned   *prometheus.CounterVec
}

func New(registerer prometheus.Registerer) *Recorder {
	r := &Recorder{
		alertsTriggered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_triggered_total",
				Help:      "Alerts transitioned to triggered, by kind and trigger path",
			},
			[]string{"kind", "path"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification delivery attempts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_cycles_total",
				Help:      "Scheduler trigger-check cycles by outcome",
			},
			[]string{"outcome"},
		),
		sweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of trigger, dispatch and cleanup sweeps",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"sweep"},
		),
		alertsCleaned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_cleaned_total",
				Help:      "Notified alerts removed after the retention window",
			},
			[]string{"kind"},
		),
	}
	registerer.MustRegister(r.alertsTriggered, r.notifications, r.cycles, r.sweepDuration, r.alertsCleaned)
	return r
}

func (r *Recorder) AlertTriggered(kind, path string) {
	if r == nil {
		return
	}
	r.alertsTriggered.WithLabelValues(kind, path).Inc()
}

func (r *Recorder) Notification(kind, outcome string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) Cycle(outcome string) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveSweep(sweep string, started time.Time) {
	if r == nil {
		return
	}
	r.sweepDuration.WithLabelValues(sweep).Observe(time.Since(started).Seconds())
}

func (r *Recorder) AlertsCleaned(kind string, count int64) {
	if r == nil || count <= 0 {
		return
	}
	r.alertsCleaned.WithLabelValues(kind).Add(float64(count))
}
