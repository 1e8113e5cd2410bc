package pipe

import (
	"fmt"

	"github.com/dep2p/go-netpipe/internal/core/buffer"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// Point 管道的一端
//
// A 端写入 A→B、读取 B→A；B 端相反。
type Point struct {
	pipe *DuplexPipe
	side types.Side

	// token 附着令牌，容量 1；Attach 取出，句柄 Close 归还
	token chan struct{}
}

func (p *Point) init(pipe *DuplexPipe, side types.Side) {
	p.pipe = pipe
	p.side = side
	p.token = make(chan struct{}, 1)
	p.token <- struct{}{}
}

// Side 返回所在侧
func (p *Point) Side() types.Side { return p.side }

// Pipe 返回所属管道
func (p *Point) Pipe() *DuplexPipe { return p.pipe }

// Counterpart 返回对端
func (p *Point) Counterpart() *Point {
	return p.pipe.Point(p.side.Other())
}

// StreamWriter 本端写入的流缓冲区
func (p *Point) StreamWriter() *buffer.StreamBuffer {
	if p.side == types.SideA {
		return p.pipe.streamAB
	}
	return p.pipe.streamBA
}

// StreamReader 本端读取的流缓冲区
func (p *Point) StreamReader() *buffer.StreamBuffer {
	if p.side == types.SideA {
		return p.pipe.streamBA
	}
	return p.pipe.streamAB
}

// DatagramWriter 本端写入的数据报缓冲区
func (p *Point) DatagramWriter() *buffer.DatagramBuffer {
	if p.side == types.SideA {
		return p.pipe.dgramAB
	}
	return p.pipe.dgramBA
}

// DatagramReader 本端读取的数据报缓冲区
func (p *Point) DatagramReader() *buffer.DatagramBuffer {
	if p.side == types.SideA {
		return p.pipe.dgramBA
	}
	return p.pipe.dgramAB
}

// Exceptions 返回共享异常队列
func (p *Point) Exceptions() *ExceptionQueue { return p.pipe.exceptions }

// Layers 返回共享层信息层级
func (p *Point) Layers() *LayerHierarchy { return p.pipe.layers }

// IsAttached 是否已被附着
func (p *Point) IsAttached() bool {
	return len(p.token) == 0
}

// IsDrained 管道已取消且本端没有剩余数据可读
//
// 对端半关闭只断开一个方向，本端仍可写入，不算排空。
func (p *Point) IsDrained() bool {
	return p.pipe.IsCanceled() &&
		p.StreamReader().Len() == 0 &&
		p.DatagramReader().Len() == 0
}

// String 返回 "pipe-id/A" 形式
func (p *Point) String() string {
	return fmt.Sprintf("%s/%s", p.pipe.id, p.side)
}

// ============================================================================
//                              附着
// ============================================================================

// AttachOptions 附着选项
type AttachOptions struct {
	// Direction 连接方向，仅用于层信息与日志
	Direction types.Direction

	// AllowDisconnected 允许附着已断开且无剩余数据的端点；
	// 为 false 时沿用管道配置
	AllowDisconnected bool
}

// Attach 取得端点的独占驱动权
//
// 端点已被附着时返回 types.ErrAlreadyAttached；端点已排空断开且未允许时返回断开故障。
// 句柄 Close 后可以再次附着。
func (p *Point) Attach(opts AttachOptions) (*AttachHandle, error) {
	select {
	case <-p.token:
	default:
		return nil, fmt.Errorf("attach %s: %w", p, types.ErrAlreadyAttached)
	}

	allow := opts.AllowDisconnected || p.pipe.cfg.AllowAttachDisconnected
	if !allow && p.IsDrained() {
		p.token <- struct{}{}
		return nil, fmt.Errorf("attach %s: %w", p, p.pipe.Err())
	}

	h := newAttachHandle(p, opts.Direction)
	if d := p.pipe.cfg.ReceiveTimeout; d > 0 {
		h.SetStreamReceiveTimeout(d)
	}
	if d := p.pipe.cfg.SendTimeout; d > 0 {
		h.SetStreamSendTimeout(d)
	}
	return h, nil
}
