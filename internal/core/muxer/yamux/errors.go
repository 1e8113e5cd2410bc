package yamux

import (
	"errors"

	"github.com/hashicorp/yamux"
)

var (
	// ErrMuxerClosed 多路复用器已关闭
	ErrMuxerClosed = errors.New("muxer closed")

	// ErrStreamReset 流被对端重置
	ErrStreamReset = errors.New("stream reset")

	// ErrNilConn 连接为空
	ErrNilConn = errors.New("nil connection")
)

// parseError 转换 yamux 错误
func parseError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, yamux.ErrConnectionReset):
		return ErrStreamReset
	case errors.Is(err, yamux.ErrSessionShutdown):
		return ErrMuxerClosed
	default:
		return err
	}
}
