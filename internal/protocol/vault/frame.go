package vault

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// Magic 握手 magic，"DVT1"
const Magic uint32 = 0x44565431

// FrameType 帧类型
type FrameType int32

const (
	// FrameGet 读取，负载为键
	FrameGet FrameType = iota + 1
	// FramePut 写入，负载为记录
	FramePut
	// FrameDelete 删除，负载为键
	FrameDelete
	// FrameValue 读取结果，负载为值
	FrameValue
	// FrameOK 成功，无负载
	FrameOK
	// FrameNotFound 键不存在，无负载
	FrameNotFound
	// FrameError 错误，负载为错误信息
	FrameError
	// FramePing 心跳请求，无负载
	FramePing
	// FramePong 心跳响应，无负载
	FramePong
	// FrameBye 结束会话，无负载
	FrameBye
)

// String 返回帧类型名称
func (t FrameType) String() string {
	switch t {
	case FrameGet:
		return "GET"
	case FramePut:
		return "PUT"
	case FrameDelete:
		return "DELETE"
	case FrameValue:
		return "VALUE"
	case FrameOK:
		return "OK"
	case FrameNotFound:
		return "NOT_FOUND"
	case FrameError:
		return "ERROR"
	case FramePing:
		return "PING"
	case FramePong:
		return "PONG"
	case FrameBye:
		return "BYE"
	default:
		return fmt.Sprintf("FrameType(%d)", int32(t))
	}
}

// HasPayload 该类型是否携带 size + payload
func (t FrameType) HasPayload() bool {
	switch t {
	case FrameGet, FramePut, FrameDelete, FrameValue, FrameError:
		return true
	}
	return false
}

// Valid 是否为已知类型
func (t FrameType) Valid() bool {
	return t >= FrameGet && t <= FrameBye
}

// Frame 一帧
type Frame struct {
	Type    FrameType
	Payload []byte
}

// ============================================================================
//                              编解码
// ============================================================================

// encodeFrame 编码为一个连续缓冲区；无负载类型忽略 Payload
func encodeFrame(f Frame) []byte {
	if !f.Type.HasPayload() {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(f.Type))
		return buf
	}
	buf := make([]byte, 8+len(f.Payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(f.Type))
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(f.Payload)))
	copy(buf[8:], f.Payload)
	return buf
}

// writeFrame 经流发送一帧
func writeFrame(ctx context.Context, s *pipe.Stream, f Frame, maxSize int) error {
	if !f.Type.Valid() {
		return types.NewFault(types.FaultProtocol, "vault write", fmt.Errorf("%w: %d", ErrUnknownFrame, f.Type))
	}
	if len(f.Payload) > maxSize {
		return types.NewFault(types.FaultProtocol, "vault write",
			fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(f.Payload), maxSize))
	}
	return s.Send(ctx, encodeFrame(f))
}

// readFrame 从流读取一帧
func readFrame(ctx context.Context, s *pipe.Stream, maxSize int) (Frame, error) {
	hdr, err := s.ReceiveAll(ctx, 4)
	if err != nil {
		return Frame{}, err
	}
	t := FrameType(int32(binary.BigEndian.Uint32(hdr)))
	if !t.Valid() {
		return Frame{}, types.NewFault(types.FaultProtocol, "vault read", fmt.Errorf("%w: %d", ErrUnknownFrame, t))
	}
	if !t.HasPayload() {
		return Frame{Type: t}, nil
	}

	szb, err := s.ReceiveAll(ctx, 4)
	if err != nil {
		return Frame{}, err
	}
	size := int32(binary.BigEndian.Uint32(szb))
	if size < 0 || int(size) > maxSize {
		return Frame{}, types.NewFault(types.FaultProtocol, "vault read",
			fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, maxSize))
	}
	payload, err := s.ReceiveAll(ctx, int(size))
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: t, Payload: payload}, nil
}
