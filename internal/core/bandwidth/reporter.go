package bandwidth

import (
	"sync"
	"time"

	"github.com/dep2p/go-netpipe/internal/util/logger"
)

// 包级别日志实例
var log = logger.Logger("bandwidth")

// ============================================================================
//                              后台任务
// ============================================================================

// Reporter 周期性输出统计日志并清理空闲条目
type Reporter struct {
	counter *Counter

	report time.Duration
	trim   time.Duration
	idle   time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewReporter 按配置创建后台任务
func NewReporter(c *Counter) *Reporter {
	return &Reporter{
		counter: c,
		report:  c.cfg.ReportInterval.Duration(),
		trim:    c.cfg.TrimInterval.Duration(),
		idle:    c.cfg.IdleTimeout.Duration(),
	}
}

// Start 启动；间隔为 0 的任务不启动
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})

	if r.report > 0 {
		r.run(r.report, r.logReport)
	}
	if r.trim > 0 {
		r.run(r.trim, func() {
			if n := r.counter.TrimIdle(r.counter.clk.Now().Add(-r.idle)); n > 0 {
				log.Debug("清理空闲流量条目", "count", n)
			}
		})
	}
}

func (r *Reporter) run(interval time.Duration, fn func()) {
	ticker := r.counter.clk.Ticker(interval)
	stopCh := r.stopCh
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stopCh:
				return
			}
		}
	}()
}

// Stop 停止并等待后台任务退出
func (r *Reporter) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Reporter) logReport() {
	t := r.counter.Totals()
	log.Info("流量统计",
		"in", FormatBytes(t.TotalIn),
		"out", FormatBytes(t.TotalOut),
		"rateIn", FormatRate(t.RateIn),
		"rateOut", FormatRate(t.RateOut))
	for _, name := range r.counter.Layers() {
		s := r.counter.ForLayer(name)
		log.Debug("协议层流量",
			"layer", name,
			"in", FormatBytes(s.TotalIn),
			"out", FormatBytes(s.TotalOut))
	}
}
