package bandwidth

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-netpipe/config"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Clock  clock.Clock `optional:"true"`
}

// ProvideCounter 按配置创建计数器
func ProvideCounter(in ModuleInput) *Counter {
	return NewCounter(in.Config.Bandwidth, in.Clock)
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("bandwidth",
		fx.Provide(ProvideCounter),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, c *Counter) {
	r := NewReporter(c)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			r.Stop()
			t := c.Totals()
			log.Debug("流量统计已停止", "in", t.TotalIn, "out", t.TotalOut)
			return nil
		},
	})
}
