package netstack

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/bandwidth"
	"github.com/dep2p/go-netpipe/pkg/interfaces"
)

// Params Fx 输入
type Params struct {
	fx.In

	Config     *config.Config
	Transport  interfaces.Transport
	Handshaker interfaces.Handshaker `optional:"true"`
	Muxer      interfaces.Muxer      `optional:"true"`
	Bandwidth  *bandwidth.Counter    `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("netstack",
		fx.Provide(ProvideFactory),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideFactory 从统一配置创建协议栈工厂
func ProvideFactory(p Params) *Factory {
	opts := OptionsFromConfig(p.Config)
	opts.Bandwidth = p.Bandwidth
	f := NewFactory(opts, p.Transport, p.Handshaker, p.Muxer)
	log.Debug("协议栈工厂已创建",
		"tls", p.Handshaker != nil,
		"mux", p.Muxer != nil,
		"bandwidth", p.Bandwidth != nil)
	return f
}

func registerLifecycle(lc fx.Lifecycle, f *Factory) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return f.Close()
		},
	})
}
