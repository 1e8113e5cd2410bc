package transport

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/transport/tcp"
	"github.com/dep2p/go-netpipe/internal/util/logger"
	"github.com/dep2p/go-netpipe/pkg/interfaces"
)

var log = logger.Logger("transport")

// Output Fx 输出
type Output struct {
	fx.Out

	TCP       *tcp.Transport
	Transport interfaces.Transport
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideTransport),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideTransport 从统一配置创建 TCP 传输
func ProvideTransport(cfg *config.Config) Output {
	tcpCfg := config.DefaultTCPConfig()
	if cfg != nil {
		tcpCfg = cfg.TCP
	}
	t := tcp.NewTransport(tcpCfg)
	log.Debug("TCP 传输已创建", "connectTimeout", tcpCfg.ConnectTimeout, "noDelay", tcpCfg.NoDelay)
	return Output{TCP: t, Transport: t}
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, t *tcp.Transport) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return t.Close()
		},
	})
}
