// Package udp 实现数据报 socket 能力
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dep2p/go-netpipe/pkg/interfaces"
)

var aLongTimeAgo = time.Unix(1, 0)

// ErrNoPeer 未连接的 socket 发送时没有指定目标地址
var ErrNoPeer = errors.New("udp: no destination address")

// Socket UDP 数据报 socket
type Socket struct {
	conn      *net.UDPConn
	connected bool

	closeOnce sync.Once
	closeErr  error
}

// 确保实现接口
var _ interfaces.DatagramSocket = (*Socket)(nil)

// Listen 绑定本地地址（host:port）
func Listen(addr string) (*Socket, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("解析 UDP 地址失败: %w", err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("绑定 UDP 地址失败: %w", err)
	}
	return &Socket{conn: conn}, nil
}

// Dial 创建连接到 addr 的 socket
func Dial(ctx context.Context, addr string) (*Socket, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("连接 UDP 地址失败: %w", err)
	}
	return &Socket{conn: raw.(*net.UDPConn), connected: true}, nil
}

// SendTo 发送一个数据报；已连接的 socket 忽略 addr
func (s *Socket) SendTo(ctx context.Context, p []byte, addr net.Addr) (int, error) {
	stop := watch(ctx, s.conn.SetWriteDeadline)
	defer stop()

	if s.connected {
		return s.conn.Write(p)
	}
	if addr == nil {
		return 0, ErrNoPeer
	}
	return s.conn.WriteTo(p, addr)
}

// ReceiveFrom 接收一个数据报
func (s *Socket) ReceiveFrom(ctx context.Context, buf []byte) (int, net.Addr, error) {
	stop := watch(ctx, s.conn.SetReadDeadline)
	n, addr, err := s.conn.ReadFromUDP(buf)
	if stop() && err != nil {
		err = ctx.Err()
	}
	if addr == nil {
		return n, nil, err
	}
	return n, addr, err
}

// LocalAddr 返回本地地址
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close 关闭 socket
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

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
