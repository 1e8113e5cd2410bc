package netstack

import "errors"

var (
	// ErrNoHandshaker 工厂未配置 TLS 握手器
	ErrNoHandshaker = errors.New("netstack: no tls handshaker configured")

	// ErrNoMuxer 工厂未配置多路复用器
	ErrNoMuxer = errors.New("netstack: no muxer configured")

	// ErrNotStarted 协议栈尚未启动
	ErrNotStarted = errors.New("netstack: not started")

	// ErrStackClosed 协议栈已关闭
	ErrStackClosed = errors.New("netstack: closed")
)
