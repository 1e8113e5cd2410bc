// Package netpipe 提供进程内的双工 I/O 基座
//
// netpipe 以一对带流控的弹性缓冲区组成的双工管道为核心，把 TCP、TLS、
// 多路复用等协议层串成协议栈。每一层只面对管道，不关心相邻层的实现；
// 层信息（地址、TLS 会话）沿管道向上可见，故障沿管道双向传播。
//
// # 快速开始
//
//	rt, err := netpipe.New(netpipe.WithInsecureSkipVerify())
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	// 客户端：TCP → TLS → 应用
//	stack, err := rt.DialTLS(ctx, "127.0.0.1:9000", "localhost")
//	app, err := rt.Attach(stack.Upper())
//	app.Stream().Send(ctx, []byte("hello"))
//
// # 层次结构
//
//	┌──────────────────────────────────────────┐
//	│  AppStub / vault.Client / vault.Server   │  pipe.Stream
//	├──────────────────────────────────────────┤
//	│  MuxStack (yamux)                        │  每个子流一条管道
//	├──────────────────────────────────────────┤
//	│  TLSStack                                │  pump.StreamWrapper
//	├──────────────────────────────────────────┤
//	│  TCPStub                                 │  pump.SocketWrapper
//	└──────────────────────────────────────────┘
//
// 相邻两层之间是一条 DuplexPipe：下层持有 A 端，上层附着 B 端。
//
// # 流量统计
//
// 默认启用。Runtime.Bandwidth 返回按层统计的计数器：
//
//	stats := rt.Bandwidth().ForLayer("tcp")
//
// # 文件组织
//
//   - netpipe.go: Runtime 与协议栈构造
//   - options.go: 配置选项
//   - presets.go: 预设
//   - fx.go: Fx 模块组装
//   - errors.go: 公共错误
//   - version.go: 版本信息
package netpipe
