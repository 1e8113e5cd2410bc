package bandwidth

import (
	"sort"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/pump"
)

// ============================================================================
//                              统计快照
// ============================================================================

// Stats 一个方向对的统计快照
type Stats struct {
	TotalIn  int64
	TotalOut int64
	RateIn   float64
	RateOut  float64
}

// TotalBytes 双向总字节数
func (s Stats) TotalBytes() int64 {
	return s.TotalIn + s.TotalOut
}

// ============================================================================
//                              计数器
// ============================================================================

// Counter 流量计数器
//
// In 为外部资源 → 管道方向，Out 为管道 → 外部资源方向。
type Counter struct {
	cfg config.BandwidthConfig
	clk clock.Clock

	totalIn  *Meter
	totalOut *Meter

	layerIn  *MeterRegistry
	layerOut *MeterRegistry
}

// NewCounter 创建计数器；clk 为 nil 时使用系统时钟
func NewCounter(cfg config.BandwidthConfig, clk clock.Clock) *Counter {
	if clk == nil {
		clk = clock.New()
	}
	return &Counter{
		cfg:      cfg,
		clk:      clk,
		totalIn:  NewMeter(clk),
		totalOut: NewMeter(clk),
		layerIn:  &MeterRegistry{clk: clk},
		layerOut: &MeterRegistry{clk: clk},
	}
}

// Layer 返回记录到总量与指定协议层的记录器
func (c *Counter) Layer(name string) pump.Recorder {
	return &layerRecorder{c: c, name: name}
}

// RecordIn 记录入站字节
func (c *Counter) RecordIn(layer string, n int) {
	c.totalIn.Mark(n)
	if c.cfg.PerLayer && layer != "" {
		c.layerIn.Get(layer).Mark(n)
	}
}

// RecordOut 记录出站字节
func (c *Counter) RecordOut(layer string, n int) {
	c.totalOut.Mark(n)
	if c.cfg.PerLayer && layer != "" {
		c.layerOut.Get(layer).Mark(n)
	}
}

// Totals 总量统计
func (c *Counter) Totals() Stats {
	return Stats{
		TotalIn:  c.totalIn.Total(),
		TotalOut: c.totalOut.Total(),
		RateIn:   c.totalIn.Rate(),
		RateOut:  c.totalOut.Rate(),
	}
}

// ForLayer 指定协议层的统计；未记录过的层返回零值
func (c *Counter) ForLayer(name string) Stats {
	var s Stats
	if m, ok := c.layerIn.Load(name); ok {
		s.TotalIn, s.RateIn = m.Total(), m.Rate()
	}
	if m, ok := c.layerOut.Load(name); ok {
		s.TotalOut, s.RateOut = m.Total(), m.Rate()
	}
	return s
}

// ByLayer 全部协议层的统计
func (c *Counter) ByLayer() map[string]Stats {
	out := make(map[string]Stats)
	collect := func(key string, _ *Meter) {
		if _, ok := out[key]; !ok {
			out[key] = c.ForLayer(key)
		}
	}
	c.layerIn.ForEach(collect)
	c.layerOut.ForEach(collect)
	return out
}

// Layers 按总字节数降序返回协议层名
func (c *Counter) Layers() []string {
	stats := c.ByLayer()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := stats[names[i]].TotalBytes(), stats[names[j]].TotalBytes()
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	return names
}

// Reset 清零全部统计
func (c *Counter) Reset() {
	c.totalIn.Reset()
	c.totalOut.Reset()
	c.layerIn.Clear()
	c.layerOut.Clear()
}

// TrimIdle 删除 since 之后没有活动的协议层条目
func (c *Counter) TrimIdle(since time.Time) int {
	return c.layerIn.TrimIdle(since) + c.layerOut.TrimIdle(since)
}

// ============================================================================
//                              协议层记录器
// ============================================================================

type layerRecorder struct {
	c    *Counter
	name string
}

var _ pump.Recorder = (*layerRecorder)(nil)

func (r *layerRecorder) RecordIn(n int)  { r.c.RecordIn(r.name, n) }
func (r *layerRecorder) RecordOut(n int) { r.c.RecordOut(r.name, n) }
