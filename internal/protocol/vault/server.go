package vault

import (
	"context"
	"errors"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// Server 服务端会话
type Server struct {
	*Conn
	store Store
}

// NewServer 在 stream 上创建服务端会话；store 为 nil 时使用默认内存存储
func NewServer(stream *pipe.Stream, cfg config.VaultConfig, store Store) *Server {
	if store == nil {
		store = NewMemoryStore(0)
	}
	return &Server{Conn: NewConn(stream, cfg), store: store}
}

// Handshake 完成握手
func (s *Server) Handshake(ctx context.Context) error {
	return s.handshake(ctx)
}

// Store 返回存储
func (s *Server) Store() Store { return s.store }

// Serve 处理请求直到对端发送 BYE 或断开
//
// 对端正常断开返回 nil。协议故障先回复错误帧，再以该故障取消管道并返回。
func (s *Server) Serve(ctx context.Context) error {
	for {
		req, err := s.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, types.ErrProtocolViolation) {
				msg := []byte(err.Error())
				if len(msg) > s.cfg.MaxFrameSize {
					msg = msg[:s.cfg.MaxFrameSize]
				}
				_ = s.WriteFrame(ctx, Frame{Type: FrameError, Payload: msg})
				s.stream.Point().Pipe().Cancel(err)
				return err
			}
			if types.IsDisconnected(err) {
				return nil
			}
			return err
		}

		resp := s.handle(req)
		if err := s.WriteFrame(ctx, resp); err != nil {
			if types.IsDisconnected(err) {
				return nil
			}
			return err
		}
		if req.Type == FrameBye {
			log.Debug("会话结束", "stream", s.stream.Point())
			return nil
		}
	}
}

func (s *Server) handle(req Frame) Frame {
	switch req.Type {
	case FrameGet:
		if v, ok := s.store.Get(string(req.Payload)); ok {
			return Frame{Type: FrameValue, Payload: v}
		}
		return Frame{Type: FrameNotFound}
	case FramePut:
		r, err := UnmarshalRecord(req.Payload)
		if err != nil {
			return Frame{Type: FrameError, Payload: []byte(err.Error())}
		}
		s.store.Put(r.Key, r.Value)
		return Frame{Type: FrameOK}
	case FrameDelete:
		if s.store.Delete(string(req.Payload)) {
			return Frame{Type: FrameOK}
		}
		return Frame{Type: FrameNotFound}
	case FramePing:
		return Frame{Type: FramePong}
	case FrameBye:
		return Frame{Type: FrameOK}
	default:
		return Frame{Type: FrameError, Payload: []byte("unexpected frame " + req.Type.String())}
	}
}
