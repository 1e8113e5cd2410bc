// Package transport 组装 netpipe 的 socket 能力
//
// # 支持的传输
//
//   - TCP: host:port 或 /ip4/.../tcp/...（子包 tcp）
//   - UDP: host:port（子包 udp）
//
// # Fx 模块集成
//
//	app := fx.New(
//	    fx.Supply(config.NewConfig()),
//	    transport.Module(),
//	    fx.Invoke(func(t interfaces.Transport) {
//	        // 拨号或监听
//	    }),
//	)
package transport
