// Package interfaces 定义 netpipe 依赖的外部能力接口
//
// 管道核心只通过这些接口使用操作系统资源，不依赖具体实现：
//   - transport.go      - 字节流 socket、拨号器、监听器、数据报 socket
//   - security.go       - TLS 握手能力与安全连接
//   - muxer.go          - 多路复用会话
//
// 具体实现位于 internal/core/transport、internal/core/security、internal/core/muxer。
package interfaces
