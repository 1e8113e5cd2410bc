package netstack

import (
	"time"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/bandwidth"
	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/internal/core/pump"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// defaultDrainTimeout 正常断开时等待本层泵排空的上限
const defaultDrainTimeout = 5 * time.Second

// Options 协议栈构造参数
type Options struct {
	// Pipe 每层上层管道的构造参数
	Pipe pipe.Config

	// Pump 泵适配器配置
	Pump config.PumpConfig

	// TCP 连接超时等
	TCP config.TCPConfig

	// TLS 握手超时
	TLS config.TLSConfig

	// DrainTimeout 正常断开传播前等待排空的上限
	DrainTimeout time.Duration

	// Bandwidth 流量计数器，为空时不统计
	Bandwidth *bandwidth.Counter
}

// DefaultOptions 返回默认参数
func DefaultOptions() Options {
	return OptionsFromConfig(config.NewConfig())
}

// OptionsFromConfig 从统一配置生成参数
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return Options{
		Pipe:         pipe.FromConfig(cfg.Pipe),
		Pump:         cfg.Pump,
		TCP:          cfg.TCP,
		TLS:          cfg.TLS,
		DrainTimeout: defaultDrainTimeout,
	}
}

func (o Options) pumpOptions(layer string, dir types.Direction) pump.Options {
	po := pump.Options{
		Config:    o.Pump,
		Clock:     o.Pipe.Clock,
		Direction: dir,
	}
	if o.Bandwidth != nil {
		po.Recorder = o.Bandwidth.Layer(layer)
	}
	return po
}

func (o Options) drainTimeout() time.Duration {
	if o.DrainTimeout > 0 {
		return o.DrainTimeout
	}
	return defaultDrainTimeout
}
