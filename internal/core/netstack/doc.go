// Package netstack 把管道组合成分层协议栈
//
// 每一层驱动其上层管道的 A 端并把 B 端交给更高一层，中间层同时附着下层端点：
//
//	AppStub ── B │ upper │ A ── TLSStack ── B │ upper │ A ── TCPStub ── socket
//
// 构造时合并上下两层的异常队列与层信息层级，并双向登记断开传播：
// 任一侧断开都会取消另一侧。正常断开等待本层泵排空后再传播，
// 故障断开立即传播。
//
// # 状态
//
//	StateUnattached → StateConnected | StateListening → StateClosed
//
// TCPStub 的 Connect 与 Listen 互斥且只能调用一次；TLSStack 的
// StartAsClient/StartAsServer 只能调用一次。握手或连接失败会回滚已附着的资源。
//
// Options.Bandwidth 非空时，各层泵按层名（tcp/tls/mux）记录流量。
//
// # 使用
//
//	f := netstack.NewFactory(opts, transport, handshaker, muxer)
//	tcp := f.NewTCPStub()
//	if err := tcp.Connect(ctx, "127.0.0.1:9000", 0); err != nil { ... }
//	sec, _ := f.NewTLSStack(tcp.Upper())
//	if err := sec.StartAsClient(ctx, "localhost"); err != nil { ... }
//	app, _ := f.NewAppStub(sec.Upper())
//	app.Stream().Send(ctx, []byte("hello"))
package netstack
