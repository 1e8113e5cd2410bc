package muxer

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/muxer/yamux"
	"github.com/dep2p/go-netpipe/internal/util/logger"
	"github.com/dep2p/go-netpipe/pkg/interfaces"
)

var log = logger.Logger("muxer")

// Output Fx 输出
type Output struct {
	fx.Out

	Yamux *yamux.Factory
	Muxer interfaces.Muxer
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("muxer",
		fx.Provide(ProvideMuxer),
	)
}

// ProvideMuxer 从统一配置创建 yamux 工厂
func ProvideMuxer(cfg *config.Config) Output {
	muxCfg := config.DefaultMuxConfig()
	if cfg != nil {
		muxCfg = cfg.Mux
	}
	f := yamux.NewFactory(muxCfg)
	log.Debug("yamux 工厂已创建",
		"acceptBacklog", muxCfg.AcceptBacklog,
		"keepAlive", muxCfg.EnableKeepAlive)
	return Output{Yamux: f, Muxer: f}
}
