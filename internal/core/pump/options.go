package pump

import (
	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// Options 适配器选项
type Options struct {
	// Config 泵配置，零值字段取默认值
	Config config.PumpConfig

	// Clock 用于等待轮询，为空时使用管道的时钟
	Clock clock.Clock

	// Direction 附着句柄的方向
	Direction types.Direction

	// AllowDisconnected 允许附着已排空断开的端点
	AllowDisconnected bool

	// Recorder 记录与外部资源之间搬运的字节数，可为空
	Recorder Recorder
}

// Recorder 流量记录
//
// In 为外部资源 → 管道方向，Out 为管道 → 外部资源方向。
type Recorder interface {
	RecordIn(n int)
	RecordOut(n int)
}

// DefaultOptions 返回默认选项
func DefaultOptions() Options {
	return Options{Config: config.DefaultPumpConfig()}
}

func (o Options) normalized() Options {
	def := config.DefaultPumpConfig()
	if o.Config.PollInterval <= 0 {
		o.Config.PollInterval = def.PollInterval
	}
	if o.Config.ReadSize <= 0 {
		o.Config.ReadSize = def.ReadSize
	}
	if o.Config.MaxBatchBytes <= 0 {
		o.Config.MaxBatchBytes = def.MaxBatchBytes
	}
	if o.Config.MaxDatagramBatch <= 0 {
		o.Config.MaxDatagramBatch = def.MaxDatagramBatch
	}
	return o
}

// newLimiter 按 BytesPerSecond 创建限速器，0 表示不限速
func newLimiter(c config.PumpConfig) *rate.Limiter {
	if c.BytesPerSecond <= 0 {
		return nil
	}
	burst := c.BytesPerSecond
	if burst < c.ReadSize {
		burst = c.ReadSize
	}
	return rate.NewLimiter(rate.Limit(c.BytesPerSecond), burst)
}
