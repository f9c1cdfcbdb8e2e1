package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every exported metric.
const Namespace = "omni"

// GaugeFunc reports a value read at scrape time.
type GaugeFunc func() float64

// PrometheusCollector exposes a Collector as Prometheus metrics. Values are
// read from the Collector at scrape time, so it can be registered once and
// left alone.
type PrometheusCollector struct {
	source *Collector
	gauges map[string]GaugeFunc

	enqueued   *prometheus.Desc
	delivered  *prometheus.Desc
	dropped    *prometheus.Desc
	flushes    *prometheus.Desc
	flushMax   *prometheus.Desc
	sinkErrors *prometheus.Desc
	entries    *prometheus.Desc
	gaugeDescs map[string]*prometheus.Desc
}

// NewPrometheusCollector wraps source. Extra gauges (buffer size, health
// status...) are read through the given functions on every scrape.
func NewPrometheusCollector(source *Collector, gauges map[string]GaugeFunc) *PrometheusCollector {
	pc := &PrometheusCollector{
		source: source,
		gauges: gauges,
		enqueued: prometheus.NewDesc(prometheus.BuildFQName(Namespace, "buffer", "enqueued_total"),
			"Entries appended to the buffer queue.", nil, nil),
		delivered: prometheus.NewDesc(prometheus.BuildFQName(Namespace, "buffer", "delivered_total"),
			"Entries handed to the composed sink.", nil, nil),
		dropped: prometheus.NewDesc(prometheus.BuildFQName(Namespace, "buffer", "dropped_total"),
			"Entries discarded by the overflow policy.", []string{"reason"}, nil),
		flushes: prometheus.NewDesc(prometheus.BuildFQName(Namespace, "buffer", "flushes_total"),
			"Buffer flushes performed.", nil, nil),
		flushMax: prometheus.NewDesc(prometheus.BuildFQName(Namespace, "buffer", "flush_max_seconds"),
			"Longest flush observed.", nil, nil),
		sinkErrors: prometheus.NewDesc(prometheus.BuildFQName(Namespace, "sink", "errors_total"),
			"Sink write failures absorbed by the pipeline.", []string{"sink"}, nil),
		entries: prometheus.NewDesc(prometheus.BuildFQName(Namespace, "logger", "entries_total"),
			"Entries accepted by loggers.", []string{"level"}, nil),
		gaugeDescs: make(map[string]*prometheus.Desc, len(gauges)),
	}
	for name := range gauges {
		pc.gaugeDescs[name] = prometheus.NewDesc(prometheus.BuildFQName(Namespace, "", name),
			"Pipeline gauge "+name+".", nil, nil)
	}
	return pc
}

// Describe implements prometheus.Collector.
func (pc *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.enqueued
	ch <- pc.delivered
	ch <- pc.dropped
	ch <- pc.flushes
	ch <- pc.flushMax
	ch <- pc.sinkErrors
	ch <- pc.entries
	for _, d := range pc.gaugeDescs {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (pc *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	m := pc.source.Snapshot()

	ch <- prometheus.MustNewConstMetric(pc.enqueued, prometheus.CounterValue, float64(m.Enqueued))
	ch <- prometheus.MustNewConstMetric(pc.delivered, prometheus.CounterValue, float64(m.Delivered))
	for reason, n := range m.DroppedBy {
		ch <- prometheus.MustNewConstMetric(pc.dropped, prometheus.CounterValue, float64(n), reason)
	}
	ch <- prometheus.MustNewConstMetric(pc.flushes, prometheus.CounterValue, float64(m.FlushCount))
	ch <- prometheus.MustNewConstMetric(pc.flushMax, prometheus.GaugeValue, m.MaxFlushTime.Seconds())
	for sink, n := range m.SinkErrorsByName {
		ch <- prometheus.MustNewConstMetric(pc.sinkErrors, prometheus.CounterValue, float64(n), sink)
	}
	for level, n := range m.EntriesByLevel {
		ch <- prometheus.MustNewConstMetric(pc.entries, prometheus.CounterValue, float64(n), strconv.Itoa(level))
	}
	for name, fn := range pc.gauges {
		ch <- prometheus.MustNewConstMetric(pc.gaugeDescs[name], prometheus.GaugeValue, fn())
	}
}
