package bandwidth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
//                              Prometheus 导出
// ============================================================================

const metricsNamespace = "netpipe"

var (
	bytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "bandwidth", "bytes_total"),
		"泵适配器搬运的字节总数",
		[]string{"direction"}, nil,
	)
	rateDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "bandwidth", "rate_bytes"),
		"EWMA 速率 (bytes/sec)",
		[]string{"direction"}, nil,
	)
	layerBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "bandwidth", "layer_bytes_total"),
		"按协议层划分的字节总数",
		[]string{"layer", "direction"}, nil,
	)
)

// Collector 把计数器导出为 Prometheus 指标
type Collector struct {
	counter *Counter
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建导出器
func NewCollector(c *Counter) *Collector {
	return &Collector{counter: c}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- bytesDesc
	ch <- rateDesc
	ch <- layerBytesDesc
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	t := c.counter.Totals()
	ch <- prometheus.MustNewConstMetric(bytesDesc, prometheus.CounterValue, float64(t.TotalIn), "in")
	ch <- prometheus.MustNewConstMetric(bytesDesc, prometheus.CounterValue, float64(t.TotalOut), "out")
	ch <- prometheus.MustNewConstMetric(rateDesc, prometheus.GaugeValue, t.RateIn, "in")
	ch <- prometheus.MustNewConstMetric(rateDesc, prometheus.GaugeValue, t.RateOut, "out")

	for layer, s := range c.counter.ByLayer() {
		ch <- prometheus.MustNewConstMetric(layerBytesDesc, prometheus.CounterValue, float64(s.TotalIn), layer, "in")
		ch <- prometheus.MustNewConstMetric(layerBytesDesc, prometheus.CounterValue, float64(s.TotalOut), layer, "out")
	}
}
