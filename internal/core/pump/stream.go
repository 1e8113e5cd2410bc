package pump

import (
	"context"
	"io"
	"net"

	"github.com/dep2p/go-netpipe/internal/core/pipe"
)

// StreamWrapper 在端点与任意 io.ReadWriteCloser 之间搬运字节流
//
// 外部流不接受 ctx；适配器结束时关闭它以打断阻塞的 Read。
// 实现了 CloseWrite 的外部流在管道侧排空后半关闭。
type StreamWrapper struct {
	*Wrapper
	rwc io.ReadWriteCloser
}

// NewStreamWrapper 附着 point 并创建适配器
func NewStreamWrapper(point *pipe.Point, rwc io.ReadWriteCloser, opts Options) (*StreamWrapper, error) {
	w, err := newWrapper("stream", point, opts)
	if err != nil {
		return nil, err
	}
	w.release = append(w.release, rwc.Close)
	return &StreamWrapper{Wrapper: w, rwc: rwc}, nil
}

// Start 启动流读取与流写出循环
func (s *StreamWrapper) Start() error {
	return s.start(func() { _ = s.rwc.Close() },
		s.streamIn(func(_ context.Context, p []byte) (int, error) {
			return s.rwc.Read(p)
		}),
		s.streamOut(func(_ context.Context, bufs [][]byte) error {
			nb := net.Buffers(bufs)
			_, err := nb.WriteTo(s.rwc)
			return err
		}, s.closeWrite),
	)
}

func (s *StreamWrapper) closeWrite() error {
	if cw, ok := s.rwc.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}
