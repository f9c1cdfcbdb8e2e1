package omni

import (
	"github.com/wayneeseguin/omnipipe/internal/metrics"
)

// Metrics is a point-in-time copy of the pipeline counters.
type Metrics = metrics.Metrics

// Metrics returns the current pipeline metrics.
//
// Example:
//
//	m := provider.Metrics()
//	fmt.Printf("delivered %d, dropped %d\n", m.Delivered, m.Dropped)
func (p *Provider) Metrics() Metrics {
	return p.metrics.Snapshot()
}

// ResetMetrics clears all counters.
func (p *Provider) ResetMetrics() {
	p.metrics.Reset()
}

// PrometheusCollector returns a prometheus.Collector exposing the pipeline
// counters together with buffer and health gauges. Register it once per
// provider.
//
//	prometheus.MustRegister(provider.PrometheusCollector())
func (p *Provider) PrometheusCollector() *metrics.PrometheusCollector {
	return metrics.NewPrometheusCollector(p.metrics, map[string]metrics.GaugeFunc{
		"buffer_size":     func() float64 { return float64(p.BufferSize()) },
		"buffer_capacity": func() float64 { return float64(p.BufferCapacity()) },
		"health_status":   func() float64 { return float64(p.Health().Status) },
	})
}
