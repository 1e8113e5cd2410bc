package netstack

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/internal/core/pump"
	"github.com/dep2p/go-netpipe/pkg/interfaces"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// ============================================================================
//                              TLSStack 中间层
// ============================================================================

// TLSStack TLS 中间层
//
// 在下层端点的流上握手，把 TLS 会话信息安装到下层端点，
// 然后用流泵在密文下层与明文上层管道之间搬运。
type TLSStack struct {
	*Layer
	hs interfaces.Handshaker

	started atomic.Bool

	mu      sync.Mutex
	conn    interfaces.SecureConn
	wrapper *pump.StreamWrapper
}

// NewTLSStack 附着 lower 并创建 TLS 中间层
func NewTLSStack(lower *pipe.Point, hs interfaces.Handshaker, opts Options) (*TLSStack, error) {
	if hs == nil {
		return nil, ErrNoHandshaker
	}
	s := &TLSStack{Layer: newLayer("tls", opts, true), hs: hs}
	if err := s.attachLower(lower, types.DirUnknown); err != nil {
		return nil, err
	}
	return s, nil
}

// StartAsClient 以客户端身份握手
func (s *TLSStack) StartAsClient(ctx context.Context, serverName string) error {
	return s.start(ctx, types.DirOutbound, func(ctx context.Context, conn net.Conn) (interfaces.SecureConn, error) {
		return s.hs.Client(ctx, conn, serverName)
	})
}

// StartAsServer 以服务端身份握手
func (s *TLSStack) StartAsServer(ctx context.Context) error {
	return s.start(ctx, types.DirInbound, s.hs.Server)
}

type handshakeFunc func(ctx context.Context, conn net.Conn) (interfaces.SecureConn, error)

func (s *TLSStack) start(ctx context.Context, dir types.Direction, handshake handshakeFunc) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("tls start: %w", types.ErrAlreadyStarted)
	}
	if s.State() != types.StateUnattached {
		return fmt.Errorf("tls start: %w", ErrStackClosed)
	}
	if d := s.opts.TLS.HandshakeTimeout.Duration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	conn, err := handshake(ctx, s.lower.Stream())
	if err != nil {
		return s.rollback(err)
	}
	if _, err := s.lower.SetLayerInfo(conn.Info(), s, true); err != nil {
		return s.rollback(err)
	}

	w, err := pump.NewStreamWrapper(s.upper.A(), conn, s.opts.pumpOptions("tls", dir))
	if err != nil {
		return s.rollback(err)
	}
	s.mu.Lock()
	s.conn, s.wrapper = conn, w
	s.mu.Unlock()
	s.setSettled(w.Done())

	if !s.transition(types.StateUnattached, types.StateConnected) {
		w.Cancel(nil)
		return fmt.Errorf("tls start: %w", ErrStackClosed)
	}
	if err := w.Start(); err != nil {
		return s.rollback(err)
	}
	info := conn.Info()
	log.Debug("TLS 握手完成",
		"role", dir,
		"version", info.ProtocolName(),
		"alpn", info.NegotiatedProtocol)
	return nil
}

// rollback 释放下层句柄，上层管道以协议故障取消
//
// 下层端点保持原状，由调用方决定是否关闭。
func (s *TLSStack) rollback(err error) error {
	fault := types.AsFault(err, types.FaultProtocol, "tls handshake")
	s.detach()
	s.Cancel(fault)
	log.Warn("TLS 握手失败", "err", err)
	return fault
}

// Info 返回 TLS 会话信息；握手完成前为 nil
func (s *TLSStack) Info() *types.TLSInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Info()
}

// Wrapper 返回明文侧的流泵；握手完成前为 nil
func (s *TLSStack) Wrapper() *pump.StreamWrapper {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrapper
}
