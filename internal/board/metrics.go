package board

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Commits       *prometheus.CounterVec
	RemoteUpdates prometheus.Counter
	Ticks         prometheus.Counter
	Completions   prometheus.Counter
	Degraded      prometheus.Gauge
	Viewers       prometheus.Gauge
}

// NewMetrics registers the board collectors on reg. A nil registerer yields working but
// unregistered collectors, which is what tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Commits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic_board",
			Name:      "commits_total",
			Help:      "Snapshot commits by result (ok, error, local).",
		}, []string{"result"}),
		RemoteUpdates: f.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic_board",
			Name:      "document_updates_total",
			Help:      "Document values pushed by the backing store.",
		}),
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic_board",
			Name:      "ticks_total",
			Help:      "Local countdown recomputation passes.",
		}),
		Completions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic_board",
			Name:      "treatment_completions_total",
			Help:      "Countdown treatments that reached zero and raised an alarm.",
		}),
		Degraded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic_board",
			Name:      "degraded",
			Help:      "1 while running memory-only without replication.",
		}),
		Viewers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic_board",
			Name:      "viewers",
			Help:      "Connected websocket viewers.",
		}),
	}
}
