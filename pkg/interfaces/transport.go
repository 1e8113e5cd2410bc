package interfaces

import (
	"context"
	"net"
)

// Socket 字节流 socket 能力
//
// 泵适配器只依赖此接口搬运数据。
type Socket interface {
	// Send 依次写出 bufs，返回写出的总字节数
	Send(ctx context.Context, bufs [][]byte) (int, error)

	// Receive 读取到 buf；流结束时返回 0 与 io.EOF
	Receive(ctx context.Context, buf []byte) (int, error)

	// Shutdown 关闭写方向，对端读到流结束
	Shutdown() error

	// Close 关闭 socket
	Close() error

	// LocalAddr 返回本地地址
	LocalAddr() net.Addr

	// RemoteAddr 返回远端地址
	RemoteAddr() net.Addr
}

// Dialer 拨号能力
type Dialer interface {
	// Dial 连接到 addr，ctx 控制超时与取消
	Dial(ctx context.Context, addr string) (Socket, error)
}

// Listener 监听能力
type Listener interface {
	// Accept 等待下一个入站连接
	Accept(ctx context.Context) (Socket, error)

	// Addr 返回监听地址
	Addr() net.Addr

	// Close 关闭监听器，阻塞中的 Accept 返回错误
	Close() error
}

// Transport 同时提供拨号与监听
type Transport interface {
	Dialer

	// Listen 在 addr 上监听
	Listen(addr string) (Listener, error)

	// Close 关闭传输
	Close() error
}

// DatagramSocket 数据报 socket 能力
type DatagramSocket interface {
	// SendTo 发送一个数据报；addr 为 nil 时发往已连接的对端
	SendTo(ctx context.Context, p []byte, addr net.Addr) (int, error)

	// ReceiveFrom 接收一个数据报
	ReceiveFrom(ctx context.Context, buf []byte) (int, net.Addr, error)

	// LocalAddr 返回本地地址
	LocalAddr() net.Addr

	// Close 关闭 socket
	Close() error
}
