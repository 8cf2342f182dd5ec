// Package prommetrics exposes paging list activity as Prometheus metrics.
package prommetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/frasker/paging"
)

// listMetrics is the Prometheus implementation of paging.Metrics.
type listMetrics struct {
	loads          *prometheus.CounterVec
	itemsTrimmed   prometheus.Counter
	tilesRequested prometheus.Counter
	listSize       prometheus.Gauge
}

// New creates a Prometheus-backed paging.Metrics registered on reg, labeled
// with the given list name. Panics if a collector with the same name is
// already registered.
func New(reg prometheus.Registerer, list string) paging.Metrics {
	labels := prometheus.Labels{"list": list}
	return &listMetrics{
		loads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "paging_loads_total",
				Help:        "Total loads dispatched to the data source, by load kind",
				ConstLabels: labels,
			},
			[]string{"kind"}, // "init", "prepend", "append", "tile"
		),
		itemsTrimmed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name:        "paging_items_trimmed_total",
				Help:        "Total items evicted by memory-bounded trimming",
				ConstLabels: labels,
			},
		),
		tilesRequested: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name:        "paging_tiles_requested_total",
				Help:        "Total tiles requested by tiled lists",
				ConstLabels: labels,
			},
		),
		listSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name:        "paging_list_size",
				Help:        "Current logical size of the list, placeholders included",
				ConstLabels: labels,
			},
		),
	}
}

func (m *listMetrics) RecordLoad(kind string) {
	m.loads.WithLabelValues(kind).Inc()
}

func (m *listMetrics) RecordItemsTrimmed(n int) {
	m.itemsTrimmed.Add(float64(n))
}

func (m *listMetrics) RecordTilesRequested(n int) {
	m.tilesRequested.Add(float64(n))
}

func (m *listMetrics) RecordListSize(n int) {
	m.listSize.Set(float64(n))
}
