package tcp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dep2p/go-netpipe/pkg/interfaces"
)

// aLongTimeAgo 用于立即打断阻塞中的读写
var aLongTimeAgo = time.Unix(1, 0)

// Conn TCP socket
type Conn struct {
	conn *net.TCPConn

	closeOnce sync.Once
	closeErr  error
	onClose   func(*Conn)
}

// 确保实现接口
var _ interfaces.Socket = (*Conn)(nil)

// NewConn 包装 TCP 连接
func NewConn(conn *net.TCPConn) *Conn {
	return &Conn{conn: conn}
}

// Send 依次写出 bufs（writev）
func (c *Conn) Send(ctx context.Context, bufs [][]byte) (int, error) {
	stop := watch(ctx, c.conn.SetWriteDeadline)
	nb := append(net.Buffers(nil), bufs...)
	n, err := nb.WriteTo(c.conn)
	if stop() {
		err = ctxErr(ctx, err)
	}
	return int(n), err
}

// Receive 读取到 buf；流结束时返回 io.EOF
func (c *Conn) Receive(ctx context.Context, buf []byte) (int, error) {
	stop := watch(ctx, c.conn.SetReadDeadline)
	n, err := c.conn.Read(buf)
	if stop() {
		err = ctxErr(ctx, err)
	}
	return n, err
}

// watch 在 ctx 结束时通过 setDeadline 打断阻塞的读或写；
// 返回的 stop 报告 ctx 是否已打断
func watch(ctx context.Context, setDeadline func(time.Time) error) (stop func() bool) {
	if ctx.Done() == nil {
		return func() bool { return false }
	}
	fired := make(chan struct{})
	cancel := context.AfterFunc(ctx, func() {
		_ = setDeadline(aLongTimeAgo)
		close(fired)
	})
	return func() bool {
		if cancel() {
			return false
		}
		<-fired
		_ = setDeadline(time.Time{})
		return true
	}
}

func ctxErr(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Shutdown 关闭写方向
func (c *Conn) Shutdown() error {
	return c.conn.CloseWrite()
}

// Close 关闭连接
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
	return c.closeErr
}

// LocalAddr 返回本地地址
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr 返回远端地址
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// NetConn 返回底层连接
func (c *Conn) NetConn() *net.TCPConn {
	return c.conn
}

func applyOptions(conn *net.TCPConn, noDelay bool, keepAlive time.Duration) {
	_ = conn.SetNoDelay(noDelay)
	if keepAlive > 0 {
		_ = conn.SetKeepAlive(true)
		_ = conn.SetKeepAlivePeriod(keepAlive)
	}
}
