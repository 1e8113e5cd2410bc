package netpipe

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/bandwidth"
	"github.com/dep2p/go-netpipe/internal/core/muxer"
	"github.com/dep2p/go-netpipe/internal/core/netstack"
	"github.com/dep2p/go-netpipe/internal/core/security"
	"github.com/dep2p/go-netpipe/internal/core/transport"
	"github.com/dep2p/go-netpipe/internal/util/logger"

	tlsimpl "github.com/dep2p/go-netpipe/internal/core/security/tls"
)

var log = logger.Logger("netpipe")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 配置注入
//  2. Transport → Security → Muxer
//  3. 流量统计（可选）
//  4. Netstack 工厂（依赖以上各项）
//  5. 用户扩展
//  6. 运行时组件注入
func buildFxApp(cfg *config.Config, rt *Runtime, userOpts []fx.Option) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 核心模块
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg),

		transport.Module(), // TCP 传输
		security.Module(),  // TLS 握手器
		muxer.Module(),     // yamux 多路复用
		netstack.Module(),  // 协议栈工厂
	}

	if cfg.Bandwidth.Enabled {
		modules = append(modules, bandwidth.Module())
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 用户扩展（Fx Options）
	// ════════════════════════════════════════════════════════════════════════
	if len(userOpts) > 0 {
		modules = append(modules, userOpts...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. Runtime 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		fx.Invoke(injectRuntimeComponents(rt)),

		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	return fx.New(modules...), nil
}

// runtimeInjectParams Runtime 组件注入参数
type runtimeInjectParams struct {
	fx.In

	Factory   *netstack.Factory
	TLS       *tlsimpl.Handshaker `optional:"true"`
	Bandwidth *bandwidth.Counter  `optional:"true"`
}

// injectRuntimeComponents 将 Fx 构造的组件注入 Runtime
func injectRuntimeComponents(rt *Runtime) func(runtimeInjectParams) {
	return func(p runtimeInjectParams) {
		rt.factory = p.Factory
		rt.tls = p.TLS
		rt.bandwidth = p.Bandwidth
		log.Debug("运行时组件已注入",
			"tls", p.TLS != nil,
			"bandwidth", p.Bandwidth != nil)
	}
}
