package pump

import (
	"context"
	"net"

	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/pkg/interfaces"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// SocketWrapper 在端点与 interfaces.Socket 之间搬运字节流
type SocketWrapper struct {
	*Wrapper
	sock interfaces.Socket
}

// NewSocketWrapper 附着 point 并创建适配器；适配器结束时关闭 sock
func NewSocketWrapper(point *pipe.Point, sock interfaces.Socket, opts Options) (*SocketWrapper, error) {
	w, err := newWrapper("socket", point, opts)
	if err != nil {
		return nil, err
	}
	w.release = append(w.release, sock.Close)
	return &SocketWrapper{Wrapper: w, sock: sock}, nil
}

// Socket 返回外部 socket
func (s *SocketWrapper) Socket() interfaces.Socket {
	return s.sock
}

// LocalAddr 返回本地地址
func (s *SocketWrapper) LocalAddr() net.Addr { return s.sock.LocalAddr() }

// RemoteAddr 返回远端地址
func (s *SocketWrapper) RemoteAddr() net.Addr { return s.sock.RemoteAddr() }

// Start 启动流读取与流写出循环
func (s *SocketWrapper) Start() error {
	return s.start(nil,
		s.streamIn(s.sock.Receive),
		s.streamOut(func(ctx context.Context, bufs [][]byte) error {
			_, err := s.sock.Send(ctx, bufs)
			return err
		}, s.sock.Shutdown),
	)
}

// ============================================================================
//                              DatagramWrapper
// ============================================================================

// DatagramWrapper 在端点与 interfaces.DatagramSocket 之间搬运数据报
type DatagramWrapper struct {
	*Wrapper
	sock   interfaces.DatagramSocket
	remote net.Addr
}

// NewDatagramWrapper 附着 point 并创建适配器
//
// 出站数据报没有目标地址时发往 remote；remote 为空时交给 socket 的默认对端。
func NewDatagramWrapper(point *pipe.Point, sock interfaces.DatagramSocket, remote net.Addr, opts Options) (*DatagramWrapper, error) {
	w, err := newWrapper("datagram", point, opts)
	if err != nil {
		return nil, err
	}
	w.release = append(w.release, sock.Close)
	return &DatagramWrapper{Wrapper: w, sock: sock, remote: remote}, nil
}

// Start 启动数据报读取与写出循环
func (d *DatagramWrapper) Start() error {
	return d.start(nil,
		d.datagramIn(d.sock.ReceiveFrom),
		d.datagramOut(func(ctx context.Context, dg types.Datagram) error {
			addr := dg.Addr
			if addr == nil {
				addr = d.remote
			}
			_, err := d.sock.SendTo(ctx, dg.Data, addr)
			return err
		}),
	)
}
