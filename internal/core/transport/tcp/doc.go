// Package tcp 实现 TCP 字节流 socket 能力
//
// 提供 interfaces.Socket、interfaces.Dialer、interfaces.Listener 的 TCP 实现，
// 供 netstack 的 TCP 存根层与泵适配器使用。
//
// # 地址格式
//
//	127.0.0.1:4001
//	[::1]:4001
//	/ip4/1.2.3.4/tcp/4001
//	/ip6/::1/tcp/4001
//	/dns4/example.com/tcp/4001
//
// # 使用示例
//
//	t := tcp.NewTransport(config.DefaultTCPConfig())
//
//	// 监听
//	l, err := t.Listen("/ip4/0.0.0.0/tcp/4001")
//
//	// 拨号
//	s, err := t.Dial(ctx, "/ip4/1.2.3.4/tcp/4001")
package tcp
