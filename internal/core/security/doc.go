// Package security 提供 TLS 中间层的握手能力
//
// 子包 tls 实现 interfaces.Handshaker；本包的 Module 从统一配置
// 构建握手器并注入依赖图。
//
// # 使用示例
//
//	app := fx.New(
//	    fx.Supply(config.NewConfig()),
//	    security.Module(),
//	    fx.Invoke(func(hs interfaces.Handshaker) { ... }),
//	)
package security
