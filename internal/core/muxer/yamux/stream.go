package yamux

import (
	"net"
	"sync/atomic"

	"github.com/hashicorp/yamux"
)

// Stream 封装 yamux.Stream，关闭时从所属会话的计数中移除
type Stream struct {
	*yamux.Stream

	closed  atomic.Bool
	onClose func(*Stream)
}

// 确保实现 net.Conn 接口
var _ net.Conn = (*Stream)(nil)

func newStream(s *yamux.Stream, onClose func(*Stream)) *Stream {
	return &Stream{Stream: s, onClose: onClose}
}

// Read 从流中读取数据
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.Stream.Read(p)
	return n, parseError(err)
}

// Write 向流写入数据
func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.Stream.Write(p)
	return n, parseError(err)
}

// Close 关闭流
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.Stream.Close()
	if s.onClose != nil {
		s.onClose(s)
	}
	return parseError(err)
}

// ID 返回流 ID
func (s *Stream) ID() uint32 {
	return s.StreamID()
}

// IsClosed 检查是否已关闭
func (s *Stream) IsClosed() bool {
	return s.closed.Load()
}
