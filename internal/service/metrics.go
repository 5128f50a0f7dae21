package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ingestion pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	ingested *prometheus.CounterVec
	derive   prometheus.Histogram
}

// NewMetrics creates the pipeline collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ingested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_ingested_total",
				Help: "Total number of document create and update calls by result.",
			},
			[]string{"operation", "result"},
		),
		derive: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thumbnail_derive_seconds",
			Help:    "Time spent deriving thumbnails.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}

	for _, c := range []prometheus.Collector{m.ingested, m.derive} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) countIngest(op, result string) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(op, result).Inc()
}

func (m *Metrics) observeDerive(d time.Duration) {
	if m == nil {
		return
	}
	m.derive.Observe(d.Seconds())
}
