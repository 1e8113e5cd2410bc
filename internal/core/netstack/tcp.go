package netstack

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/internal/core/pump"
	"github.com/dep2p/go-netpipe/pkg/interfaces"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// ============================================================================
//                              TCPStub 底层
// ============================================================================

// TCPStub 底层协议栈，用 socket 泵驱动上层管道
type TCPStub struct {
	*Layer
	transport interfaces.Transport

	mu       sync.Mutex
	listener interfaces.Listener
	book     *pipe.AttachHandle
	info     *types.TCPInfo
	wrapper  *pump.SocketWrapper
}

// NewTCPStub 创建未连接的底层协议栈
func NewTCPStub(tr interfaces.Transport, opts Options) *TCPStub {
	return &TCPStub{
		Layer:     newLayer("tcp", opts, true),
		transport: tr,
	}
}

// Connect 连接到 addr
//
// timeout <= 0 时使用配置的连接超时。与 Listen 互斥，只能调用一次。
// 失败时上层管道以资源故障取消。
func (s *TCPStub) Connect(ctx context.Context, addr string, timeout time.Duration) error {
	if !s.transition(types.StateUnattached, types.StateConnected) {
		return fmt.Errorf("tcp connect %s: %w", addr, types.ErrAlreadyStarted)
	}
	if timeout <= 0 {
		timeout = s.opts.TCP.ConnectTimeout.Duration()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sock, err := s.transport.Dial(ctx, addr)
	if err != nil {
		return s.fail("tcp connect", err)
	}
	if err := s.run(sock, types.DirOutbound); err != nil {
		_ = sock.Close()
		return s.fail("tcp connect", err)
	}
	log.Debug("TCP 已连接", "local", sock.LocalAddr(), "remote", sock.RemoteAddr())
	return nil
}

// Listen 在 addr 上监听
//
// 与 Connect 互斥，只能调用一次。监听地址作为 TCP 层信息安装在上层管道上。
func (s *TCPStub) Listen(addr string) error {
	if !s.transition(types.StateUnattached, types.StateListening) {
		return fmt.Errorf("tcp listen %s: %w", addr, types.ErrAlreadyStarted)
	}

	l, err := s.transport.Listen(addr)
	if err != nil {
		return s.fail("tcp listen", err)
	}
	h, err := s.upper.A().Attach(pipe.AttachOptions{Direction: types.DirInbound})
	if err != nil {
		_ = l.Close()
		return s.fail("tcp listen", err)
	}
	info := types.NewTCPInfo(l.Addr(), nil, types.DirInbound)
	if _, err := h.SetLayerInfo(info, s, true); err != nil {
		_ = h.Close()
		_ = l.Close()
		return s.fail("tcp listen", err)
	}

	s.mu.Lock()
	s.listener, s.book, s.info = l, h, info
	s.mu.Unlock()

	// 取消时关闭监听器，打断阻塞的 Accept
	s.upper.OnDisconnect(func(error) {
		_ = l.Close()
		_ = h.Close()
	})
	log.Info("TCP 监听中", "addr", l.Addr())
	return nil
}

// Accept 等待下一个入站连接并返回已连接的协议栈
//
// 新协议栈的层级与一份监听信息的记录层级合并，可以查询到监听地址。
func (s *TCPStub) Accept(ctx context.Context) (*TCPStub, error) {
	s.mu.Lock()
	l, info := s.listener, s.info
	s.mu.Unlock()
	if l == nil || s.State() != types.StateListening {
		return nil, types.ErrNotListening
	}

	sock, err := l.Accept(ctx)
	if err != nil {
		if s.State() == types.StateClosed {
			return nil, fmt.Errorf("tcp accept: %w", ErrStackClosed)
		}
		return nil, fmt.Errorf("tcp accept: %w", err)
	}

	child := NewTCPStub(s.transport, s.opts)
	child.transition(types.StateUnattached, types.StateConnected)
	child.upper.Layers().Encounter(bookkeeping(s, info))
	if err := child.run(sock, types.DirInbound); err != nil {
		_ = sock.Close()
		return nil, child.fail("tcp accept", err)
	}
	log.Debug("TCP 已接受", "local", sock.LocalAddr(), "remote", sock.RemoteAddr())
	return child, nil
}

// bookkeeping 创建只含监听信息的独立层级
func bookkeeping(owner *TCPStub, info *types.TCPInfo) *pipe.LayerHierarchy {
	h := pipe.NewLayerHierarchy()
	_ = h.Install(pipe.NewLayerNode(info, owner), nil, false)
	return h
}

// run 用 socket 泵驱动上层管道 A 端，并安装 TCP 层信息
func (s *TCPStub) run(sock interfaces.Socket, dir types.Direction) error {
	w, err := pump.NewSocketWrapper(s.upper.A(), sock, s.opts.pumpOptions("tcp", dir))
	if err != nil {
		return err
	}
	info := types.NewTCPInfo(sock.LocalAddr(), sock.RemoteAddr(), dir)
	if _, err := w.Handle().SetLayerInfo(info, s, true); err != nil {
		w.Cancel(err)
		return err
	}

	s.mu.Lock()
	s.wrapper, s.info = w, info
	s.mu.Unlock()
	s.setSettled(w.Done())
	return w.Start()
}

// fail 回滚：上层管道以资源故障取消
func (s *TCPStub) fail(op string, err error) error {
	fault := types.AsFault(err, types.FaultResource, op)
	s.Cancel(fault)
	return fault
}

// Info 返回已安装的 TCP 层信息；未连接或监听时为 nil
func (s *TCPStub) Info() *types.TCPInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Addr 返回监听地址；未监听时为 nil
func (s *TCPStub) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Wrapper 返回驱动上层管道的 socket 泵；监听或未连接时为 nil
func (s *TCPStub) Wrapper() *pump.SocketWrapper {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrapper
}
