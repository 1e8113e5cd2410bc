package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/util/logger"
	"github.com/dep2p/go-netpipe/pkg/interfaces"
)

var log = logger.Logger("transport/tcp")

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输
//
// 记录由它创建的监听器与连接，Close 时统一关闭。
type Transport struct {
	cfg config.TCPConfig

	mu        sync.Mutex
	listeners map[*Listener]struct{}
	conns     map[*Conn]struct{}

	closed atomic.Bool
}

// 确保实现接口
var _ interfaces.Transport = (*Transport)(nil)

// NewTransport 创建 TCP 传输
func NewTransport(cfg config.TCPConfig) *Transport {
	return &Transport{
		cfg:       cfg,
		listeners: make(map[*Listener]struct{}),
		conns:     make(map[*Conn]struct{}),
	}
}

// Dial 建立出站连接
//
// 连接超时取 ctx 与 ConnectTimeout 中较早者。
func (t *Transport) Dial(ctx context.Context, addr string) (interfaces.Socket, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	tcpAddr, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{
		Timeout:   t.cfg.ConnectTimeout.Duration(),
		KeepAlive: t.cfg.KeepAlivePeriod.Duration(),
	}
	network := tcpAddr.network
	if network == "" {
		network = "tcp"
	}
	raw, err := dialer.DialContext(ctx, network, tcpAddr.NetDialString())
	if err != nil {
		return nil, fmt.Errorf("连接 %s 失败: %w", addr, err)
	}

	tcpConn, ok := raw.(*net.TCPConn)
	if !ok {
		_ = raw.Close()
		return nil, ErrNotTCP
	}
	applyOptions(tcpConn, t.cfg.NoDelay, t.cfg.KeepAlivePeriod.Duration())

	conn := NewConn(tcpConn)
	if !t.track(conn) {
		_ = conn.Close()
		return nil, ErrTransportClosed
	}
	log.Debug("TCP 连接已建立", "local", conn.LocalAddr(), "remote", conn.RemoteAddr())
	return conn, nil
}

// Listen 监听入站连接
func (t *Transport) Listen(addr string) (interfaces.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	tcpAddr, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}

	l, err := NewListener(tcpAddr, t.cfg.NoDelay, t.cfg.KeepAlivePeriod.Duration())
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		_ = l.Close()
		return nil, ErrTransportClosed
	}
	t.listeners[l] = struct{}{}
	l.onClose = func(l *Listener) {
		t.mu.Lock()
		delete(t.listeners, l)
		t.mu.Unlock()
	}
	t.mu.Unlock()

	log.Debug("TCP 监听已启动", "addr", l.Addr())
	return l, nil
}

func (t *Transport) track(c *Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return false
	}
	t.conns[c] = struct{}{}
	c.onClose = func(c *Conn) {
		t.mu.Lock()
		delete(t.conns, c)
		t.mu.Unlock()
	}
	return true
}

// Close 关闭传输及其全部监听器与连接
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.mu.Lock()
	listeners := make([]*Listener, 0, len(t.listeners))
	for l := range t.listeners {
		listeners = append(listeners, l)
	}
	conns := make([]*Conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	var err error
	for _, l := range listeners {
		err = multierr.Append(err, l.Close())
	}
	for _, c := range conns {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// ConnCount 返回存活连接数
func (t *Transport) ConnCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// ListenerCount 返回存活监听器数
func (t *Transport) ListenerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners)
}

// IsClosed 检查是否已关闭
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}
