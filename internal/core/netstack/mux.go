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
//                              MuxStack 多路复用层
// ============================================================================

// MuxStack 在下层端点的流上运行多路复用会话
//
// 每个子流拥有独立的管道，由流泵驱动其 A 端，B 端交给调用方。
// 子流管道的层级合并一份下层层信息的快照，可以查询到 TCP/TLS 信息。
type MuxStack struct {
	*Layer
	muxer interfaces.Muxer

	started atomic.Bool

	mu       sync.Mutex
	session  interfaces.MuxedConn
	isServer bool
	wrappers map[*pump.StreamWrapper]struct{}
}

// NewMuxStack 附着 lower 并创建多路复用层
func NewMuxStack(lower *pipe.Point, m interfaces.Muxer, opts Options) (*MuxStack, error) {
	if m == nil {
		return nil, ErrNoMuxer
	}
	s := &MuxStack{
		Layer:    newLayer("mux", opts, false),
		muxer:    m,
		wrappers: make(map[*pump.StreamWrapper]struct{}),
	}
	if err := s.attachLower(lower, types.DirUnknown); err != nil {
		return nil, err
	}
	return s, nil
}

// Start 建立会话；只能调用一次
func (s *MuxStack) Start(isServer bool) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("mux start: %w", types.ErrAlreadyStarted)
	}
	sess, err := s.muxer.NewConn(s.lower.Stream(), isServer)
	if err != nil {
		fault := types.AsFault(err, types.FaultProtocol, "mux start")
		s.detach()
		return fault
	}
	if !s.transition(types.StateUnattached, types.StateConnected) {
		_ = sess.Close()
		return fmt.Errorf("mux start: %w", ErrStackClosed)
	}

	s.mu.Lock()
	s.session, s.isServer = sess, isServer
	s.mu.Unlock()

	s.lower.Point().Pipe().OnDisconnect(func(error) {
		s.state.Store(int32(types.StateClosed))
		_ = sess.Close()
	})
	log.Debug("多路复用会话已建立", "server", isServer)
	return nil
}

func (s *MuxStack) current() (interfaces.MuxedConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNotStarted
	}
	return s.session, nil
}

// OpenStream 打开子流，返回其管道的 B 端
func (s *MuxStack) OpenStream(ctx context.Context) (*pipe.Point, error) {
	sess, err := s.current()
	if err != nil {
		return nil, err
	}
	conn, err := sess.OpenStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("mux open stream: %w", err)
	}
	return s.serve(conn, types.DirOutbound)
}

// AcceptStream 接受对端打开的子流，返回其管道的 B 端
func (s *MuxStack) AcceptStream(ctx context.Context) (*pipe.Point, error) {
	sess, err := s.current()
	if err != nil {
		return nil, err
	}
	conn, err := sess.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("mux accept stream: %w", err)
	}
	return s.serve(conn, types.DirInbound)
}

func (s *MuxStack) serve(conn net.Conn, dir types.Direction) (*pipe.Point, error) {
	p := pipe.New(s.opts.Pipe)
	p.Layers().Encounter(snapshot(s.Layers(), s))

	w, err := pump.NewStreamWrapper(p.A(), conn, s.opts.pumpOptions("mux", dir))
	if err != nil {
		_ = conn.Close()
		p.Cancel(nil)
		return nil, err
	}

	s.mu.Lock()
	s.wrappers[w] = struct{}{}
	s.mu.Unlock()
	go func() {
		<-w.Done()
		s.mu.Lock()
		delete(s.wrappers, w)
		s.mu.Unlock()
	}()

	if err := w.Start(); err != nil {
		return nil, err
	}
	return p.B(), nil
}

// snapshot 复制 src 的层信息到一个独立层级，保持自上而下的顺序
func snapshot(src *pipe.LayerHierarchy, owner any) *pipe.LayerHierarchy {
	h := pipe.NewLayerHierarchy()
	prev := h.Anchor()
	for _, info := range src.All() {
		n := pipe.NewLayerNode(info, owner)
		if err := h.Install(n, prev, false); err != nil {
			continue
		}
		prev = n
	}
	return h
}

// NumStreams 返回活跃子流数量
func (s *MuxStack) NumStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wrappers)
}

// IsServer 是否为服务端会话
func (s *MuxStack) IsServer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isServer
}

// Close 关闭会话与全部子流，并取消下层管道
func (s *MuxStack) Close() error {
	s.state.Store(int32(types.StateClosed))
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	var err error
	if sess != nil {
		err = sess.Close()
	}
	s.lower.Point().Pipe().Cancel(nil)
	_ = s.lower.Close()
	return err
}
