package interfaces

import (
	"context"
	"net"
)

// Muxer 多路复用器工厂
type Muxer interface {
	// NewConn 在 conn 上建立多路复用会话
	NewConn(conn net.Conn, isServer bool) (MuxedConn, error)
}

// MuxedConn 多路复用会话
type MuxedConn interface {
	// OpenStream 打开新流
	OpenStream(ctx context.Context) (net.Conn, error)

	// AcceptStream 接受对端打开的流
	AcceptStream(ctx context.Context) (net.Conn, error)

	// NumStreams 返回活跃流数量
	NumStreams() int

	// IsClosed 会话是否已关闭
	IsClosed() bool

	// Close 关闭会话及全部流
	Close() error
}
