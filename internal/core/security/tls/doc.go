// Package tls 实现 TLS 中间层使用的握手器
//
// Handshaker 在任意 net.Conn（通常是管道的 pipe.Stream）上完成
// crypto/tls 握手，返回携带会话信息的 SecureConn。
//
// # 证书
//
// 配置了 CertFile/KeyFile 时从 PEM 文件加载；否则生成
// ECDSA P-256 自签名证书，覆盖 localhost 与回环地址。
//
// # 超时
//
// 握手截止时间取 ctx 的截止时间，没有时使用 HandshakeTimeout（默认 10s）。
//
// # 使用示例
//
//	hs, err := tls.NewHandshaker(config.DefaultTLSConfig())
//	if err != nil {
//	    return err
//	}
//	sc, err := hs.Client(ctx, stream, "localhost")
//	info := sc.Info()
package tls
