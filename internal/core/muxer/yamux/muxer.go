package yamux

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/yamux"
	"go.uber.org/multierr"

	"github.com/dep2p/go-netpipe/pkg/interfaces"
)

// Muxer 封装 yamux.Session
type Muxer struct {
	session  *yamux.Session
	isServer bool
	closed   atomic.Bool

	streamsMu sync.Mutex
	streams   map[*Stream]struct{}
}

// 确保实现接口
var _ interfaces.MuxedConn = (*Muxer)(nil)

// NewMuxer 从 yamux.Session 创建 Muxer 封装
func NewMuxer(session *yamux.Session, isServer bool) *Muxer {
	return &Muxer{
		session:  session,
		isServer: isServer,
		streams:  make(map[*Stream]struct{}),
	}
}

type streamResult struct {
	stream *yamux.Stream
	err    error
}

// OpenStream 打开新流
//
// yamux 的 OpenStream 不接受 ctx；ctx 先结束时后台得到的流会被关闭。
func (m *Muxer) OpenStream(ctx context.Context) (net.Conn, error) {
	if m.IsClosed() {
		return nil, ErrMuxerClosed
	}
	return m.await(ctx, m.session.OpenStream, "打开流")
}

// AcceptStream 等待对端打开的流
func (m *Muxer) AcceptStream(ctx context.Context) (net.Conn, error) {
	if m.IsClosed() {
		return nil, ErrMuxerClosed
	}
	return m.await(ctx, m.session.AcceptStream, "接受流")
}

func (m *Muxer) await(ctx context.Context, fn func() (*yamux.Stream, error), op string) (net.Conn, error) {
	resultCh := make(chan streamResult, 1)
	abandoned := make(chan struct{})
	go func() {
		s, err := fn()
		select {
		case resultCh <- streamResult{s, err}:
		case <-abandoned:
			if s != nil {
				_ = s.Close()
			}
		}
	}()

	select {
	case <-ctx.Done():
		close(abandoned)
		// 结果可能已经就绪
		select {
		case r := <-resultCh:
			if r.stream != nil {
				_ = r.stream.Close()
			}
		default:
		}
		return nil, ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("%s失败: %w", op, parseError(r.err))
		}
		return m.track(r.stream), nil
	}
}

func (m *Muxer) track(s *yamux.Stream) *Stream {
	stream := newStream(s, m.untrack)
	m.streamsMu.Lock()
	m.streams[stream] = struct{}{}
	m.streamsMu.Unlock()
	return stream
}

func (m *Muxer) untrack(s *Stream) {
	m.streamsMu.Lock()
	delete(m.streams, s)
	m.streamsMu.Unlock()
}

// Close 关闭全部流与会话
func (m *Muxer) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.streamsMu.Lock()
	streams := make([]*Stream, 0, len(m.streams))
	for s := range m.streams {
		streams = append(streams, s)
	}
	m.streamsMu.Unlock()

	var err error
	for _, s := range streams {
		err = multierr.Append(err, s.Close())
	}
	return multierr.Append(err, m.session.Close())
}

// IsClosed 检查是否已关闭
func (m *Muxer) IsClosed() bool {
	return m.closed.Load() || m.session.IsClosed()
}

// CloseChan 会话关闭时关闭
func (m *Muxer) CloseChan() <-chan struct{} {
	return m.session.CloseChan()
}

// NumStreams 返回由本封装打开或接受、尚未关闭的流数量
func (m *Muxer) NumStreams() int {
	m.streamsMu.Lock()
	defer m.streamsMu.Unlock()
	return len(m.streams)
}

// IsServer 返回是否是服务端
func (m *Muxer) IsServer() bool {
	return m.isServer
}

// Ping 测量往返时间
func (m *Muxer) Ping() (time.Duration, error) {
	if m.IsClosed() {
		return 0, ErrMuxerClosed
	}
	rtt, err := m.session.Ping()
	return rtt, parseError(err)
}
