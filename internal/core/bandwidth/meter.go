package bandwidth

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// ============================================================================
//                              流量计量器
// ============================================================================

// EWMA 参数
const (
	// alpha 平滑因子，越大对新数据越敏感
	alpha = 0.25

	// tickInterval 速率更新间隔
	tickInterval = time.Second
)

// Meter 流量计量器
//
// 所有操作都是线程安全的。
type Meter struct {
	clk clock.Clock

	total atomic.Int64

	mu         sync.Mutex
	rate       float64
	lastTick   time.Time
	lastTotal  int64
	lastActive time.Time
}

// NewMeter 创建计量器
func NewMeter(clk clock.Clock) *Meter {
	now := clk.Now()
	return &Meter{clk: clk, lastTick: now, lastActive: now}
}

// Mark 记录 n 字节
func (m *Meter) Mark(n int) {
	if n <= 0 {
		return
	}
	m.total.Add(int64(n))

	m.mu.Lock()
	m.lastActive = m.clk.Now()
	m.tickLocked(m.lastActive)
	m.mu.Unlock()
}

// tickLocked 经过至少一个间隔时更新速率
func (m *Meter) tickLocked(now time.Time) {
	elapsed := now.Sub(m.lastTick)
	if elapsed < tickInterval {
		return
	}

	total := m.total.Load()
	instant := float64(total-m.lastTotal) / elapsed.Seconds()
	if m.rate == 0 {
		m.rate = instant
	} else {
		m.rate = alpha*instant + (1-alpha)*m.rate
	}
	m.lastTick = now
	m.lastTotal = total
}

// Total 累计字节数
func (m *Meter) Total() int64 {
	return m.total.Load()
}

// Rate 当前速率 (bytes/sec)
func (m *Meter) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickLocked(m.clk.Now())
	return m.rate
}

// LastActive 上次记录的时间
func (m *Meter) LastActive() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActive
}

// Reset 清零
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total.Store(0)
	now := m.clk.Now()
	m.rate = 0
	m.lastTick = now
	m.lastTotal = 0
	m.lastActive = now
}

// ============================================================================
//                              计量器注册表
// ============================================================================

// MeterRegistry 按键管理动态创建的计量器
type MeterRegistry struct {
	clk    clock.Clock
	meters sync.Map // map[string]*Meter
}

// Get 获取或创建计量器
func (r *MeterRegistry) Get(key string) *Meter {
	if m, ok := r.meters.Load(key); ok {
		return m.(*Meter)
	}
	actual, _ := r.meters.LoadOrStore(key, NewMeter(r.clk))
	return actual.(*Meter)
}

// Load 加载已存在的计量器，不创建
func (r *MeterRegistry) Load(key string) (*Meter, bool) {
	m, ok := r.meters.Load(key)
	if !ok {
		return nil, false
	}
	return m.(*Meter), true
}

// ForEach 遍历所有计量器
func (r *MeterRegistry) ForEach(fn func(key string, m *Meter)) {
	r.meters.Range(func(k, v any) bool {
		fn(k.(string), v.(*Meter))
		return true
	})
}

// Clear 清除所有计量器
func (r *MeterRegistry) Clear() {
	r.meters.Range(func(k, _ any) bool {
		r.meters.Delete(k)
		return true
	})
}

// TrimIdle 删除 since 之后没有活动的计量器，返回删除数量
func (r *MeterRegistry) TrimIdle(since time.Time) int {
	n := 0
	r.meters.Range(func(k, v any) bool {
		if v.(*Meter).LastActive().Before(since) {
			r.meters.Delete(k)
			n++
		}
		return true
	})
	return n
}

// ============================================================================
//                              格式化
// ============================================================================

// FormatBytes 以二进制单位格式化字节数
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatRate 格式化速率
func FormatRate(bps float64) string {
	return FormatBytes(int64(bps)) + "/s"
}
