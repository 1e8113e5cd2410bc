package tcp

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-netpipe/pkg/interfaces"
)

// ============================================================================
//                              Listener 实现
// ============================================================================

// Listener TCP 监听器
type Listener struct {
	listener  *net.TCPListener
	addr      *Address
	noDelay   bool
	keepAlive time.Duration
	closed    atomic.Bool
	onClose   func(*Listener)
}

// 确保实现接口
var _ interfaces.Listener = (*Listener)(nil)

// NewListener 在 addr 上创建 TCP 监听器
func NewListener(addr *Address, noDelay bool, keepAlive time.Duration) (*Listener, error) {
	network := addr.network
	if network == "" {
		network = "tcp"
	}

	var lc net.ListenConfig
	l, err := lc.Listen(context.Background(), network, addr.NetDialString())
	if err != nil {
		return nil, fmt.Errorf("监听失败: %w", err)
	}

	tcpListener, ok := l.(*net.TCPListener)
	if !ok {
		_ = l.Close()
		return nil, ErrNotTCP
	}

	// 端口可能是 0，取实际监听地址
	actualAddr, err := NewAddressFromNetAddr(tcpListener.Addr())
	if err != nil {
		_ = tcpListener.Close()
		return nil, fmt.Errorf("获取监听地址失败: %w", err)
	}

	return &Listener{
		listener:  tcpListener,
		addr:      actualAddr,
		noDelay:   noDelay,
		keepAlive: keepAlive,
	}, nil
}

// Accept 等待入站连接，ctx 结束时返回 ctx 错误
func (l *Listener) Accept(ctx context.Context) (interfaces.Socket, error) {
	stop := watch(ctx, l.listener.SetDeadline)
	conn, err := l.listener.AcceptTCP()
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	applyOptions(conn, l.noDelay, l.keepAlive)
	return NewConn(conn), nil
}

// Addr 返回实际监听地址
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Address 返回解析后的监听地址
func (l *Listener) Address() *Address {
	return l.addr
}

// Close 关闭监听器
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := l.listener.Close()
	if l.onClose != nil {
		l.onClose(l)
	}
	return err
}

// IsClosed 检查监听器是否已关闭
func (l *Listener) IsClosed() bool {
	return l.closed.Load()
}
