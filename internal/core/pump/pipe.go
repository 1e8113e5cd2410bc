package pump

import (
	"context"
	"fmt"

	"github.com/dep2p/go-netpipe/internal/core/buffer"
	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// PipeWrapper 在两个端点之间转发流与数据报
//
// 段按引用移动，不拷贝数据。任一管道取消后，已缓冲的数据继续转发到另一侧，
// 随后另一侧的写入缓冲区被断开；适配器结束时两条管道都会被取消。
type PipeWrapper struct {
	*Wrapper
	outer  *pipe.Point
	handle *pipe.AttachHandle
}

// NewPipeWrapper 附着 inner 与 outer 并创建适配器
func NewPipeWrapper(inner, outer *pipe.Point, opts Options) (*PipeWrapper, error) {
	w, err := newWrapper("pipe", inner, opts)
	if err != nil {
		return nil, err
	}
	h, err := outer.Attach(pipe.AttachOptions{Direction: opts.Direction, AllowDisconnected: opts.AllowDisconnected})
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("pipe: 附着外侧端点失败: %w", err)
	}
	w.release = append(w.release, h.Close, func() error {
		outer.Pipe().Cancel(nil)
		return nil
	})
	return &PipeWrapper{Wrapper: w, outer: outer, handle: h}, nil
}

// Outer 返回外侧端点
func (p *PipeWrapper) Outer() *pipe.Point {
	return p.outer
}

// Start 启动四个转发循环
func (p *PipeWrapper) Start() error {
	inner := p.point
	return p.start(nil,
		p.relayStream(p.outer.StreamReader(), inner.StreamWriter()),
		p.relayStream(inner.StreamReader(), p.outer.StreamWriter()),
		p.relayDatagrams(p.outer.DatagramReader(), inner.DatagramWriter()),
		p.relayDatagrams(inner.DatagramReader(), p.outer.DatagramWriter()),
	)
}

// relayStream 把 from 的段移动到 to
//
// from 排空断开后断开 to；to 断开后停止。两者都是正常结束，
// 四个循环全部结束时适配器才结束。
func (p *PipeWrapper) relayStream(from, to *buffer.StreamBuffer) loop {
	return func(ctx context.Context) error {
		for {
			if to.IsDisconnected() {
				return nil
			}
			if err := p.waitWritable(ctx, to); err != nil {
				return err
			}
			bufs := from.Dequeue(int64(p.cfg.MaxBatchBytes), true)
			if len(bufs) == 0 {
				if from.Drained() != nil {
					to.Disconnect(nil)
					return nil
				}
				if err := p.wait(ctx, from.Readable(), to.Done()); err != nil {
					return err
				}
				continue
			}
			from.CompleteRead()

			n := 0
			for _, b := range bufs {
				n += len(b)
			}
			if err := p.throttle(ctx, n); err != nil {
				return err
			}
			if err := to.EnqueueAll(bufs); err != nil {
				if types.IsDisconnected(err) {
					return nil
				}
				return err
			}
			to.CompleteWrite()
		}
	}
}

// relayDatagrams 与 relayStream 相同，搬运数据报
func (p *PipeWrapper) relayDatagrams(from, to *buffer.DatagramBuffer) loop {
	return func(ctx context.Context) error {
		for {
			if to.IsDisconnected() {
				return nil
			}
			if err := p.waitWritable(ctx, to); err != nil {
				return err
			}
			ds := from.Dequeue(p.cfg.MaxDatagramBatch)
			if len(ds) == 0 {
				if from.Drained() != nil {
					to.Disconnect(nil)
					return nil
				}
				if err := p.wait(ctx, from.Readable(), to.Done()); err != nil {
					return err
				}
				continue
			}
			from.CompleteRead()
			if err := to.EnqueueAll(ds); err != nil {
				if types.IsDisconnected(err) {
					return nil
				}
				return err
			}
			to.CompleteWrite()
		}
	}
}
