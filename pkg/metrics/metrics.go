package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives the counters of the tracker
type Recorder interface {
	StopUpdate(outcome string)
	TasksSubmitted(count int)
	MissionDelay(seriesID string, delay float64)
}

type Noop struct{}

func (Noop) StopUpdate(string)            {}
func (Noop) TasksSubmitted(int)           {}
func (Noop) MissionDelay(string, float64) {}

type Prometheus struct {
	updates *prometheus.CounterVec
	tasks   prometheus.Counter
	delays  *prometheus.HistogramVec
}

func NewPrometheus(registerer prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "railtracker",
			Name:      "stop_updates_total",
			Help:      "Stop updates by outcome",
		}, []string{"outcome"}),
		tasks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "railtracker",
			Name:      "tasks_submitted_total",
			Help:      "Notification tasks handed to the dispatcher",
		}),
		delays: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "railtracker",
			Name:      "mission_delay_minutes",
			Help:      "Current delay of missions after a stop update",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 15, 30, 60},
		}, []string{"series"}),
	}

	registerer.MustRegister(p.updates, p.tasks, p.delays)

	return p
}

func (p *Prometheus) StopUpdate(outcome string) {
	p.updates.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) TasksSubmitted(count int) {
	p.tasks.Add(float64(count))
}

func (p *Prometheus) MissionDelay(seriesID string, delay float64) {
	p.delays.WithLabelValues(seriesID).Observe(delay)
}
