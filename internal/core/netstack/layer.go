package netstack

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/internal/util/logger"
	"github.com/dep2p/go-netpipe/pkg/types"
)

var log = logger.Logger("netstack")

// ============================================================================
//                              Layer 基类
// ============================================================================

// Layer 协议栈的一层
//
// upper 为本层拥有的上层管道（顶层为空），lower 为下层端点的附着句柄（底层为空）。
type Layer struct {
	name  string
	opts  Options
	upper *pipe.DuplexPipe
	lower *pipe.AttachHandle

	state atomic.Int32

	mu       sync.Mutex
	settled  <-chan struct{}
	removers []func()
}

func newLayer(name string, opts Options, withUpper bool) *Layer {
	l := &Layer{name: name, opts: opts}
	if withUpper {
		l.upper = pipe.New(opts.Pipe)
	}
	return l
}

// attachLower 附着下层端点，合并异常队列与层级并登记双向断开传播
func (l *Layer) attachLower(lower *pipe.Point, dir types.Direction) error {
	h, err := lower.Attach(pipe.AttachOptions{Direction: dir})
	if err != nil {
		if l.upper != nil {
			l.upper.Cancel(nil)
		}
		l.state.Store(int32(types.StateClosed))
		return fmt.Errorf("%s: attach lower: %w", l.name, err)
	}
	l.lower = h
	if l.upper == nil {
		return nil
	}

	lp := lower.Pipe()
	l.upper.Exceptions().Encounter(lp.Exceptions())
	l.upper.Layers().Encounter(lp.Layers())

	removeDown := lp.OnDisconnect(func(err error) { l.propagate(err, l.upper) })
	removeUp := l.upper.OnDisconnect(func(err error) { l.propagate(err, lp) })
	l.mu.Lock()
	l.removers = append(l.removers, removeDown, removeUp)
	l.mu.Unlock()
	return nil
}

// propagate 把一侧的断开传给 target
//
// 故障断开立即取消；正常断开等待本层泵结束或 DrainTimeout 后取消。
func (l *Layer) propagate(cause error, target *pipe.DuplexPipe) {
	if target.IsCanceled() {
		return
	}
	l.mu.Lock()
	settled := l.settled
	l.mu.Unlock()

	if !graceful(cause) || settled == nil {
		target.Cancel(nil)
		return
	}
	go func() {
		t := l.clock().Timer(l.opts.drainTimeout())
		defer t.Stop()
		select {
		case <-settled:
		case <-target.Done():
			return
		case <-t.C:
			log.Debug("排空超时，强制传播断开", "layer", l.name)
		}
		target.Cancel(nil)
	}()
}

// graceful 是否为正常断开
func graceful(err error) bool {
	var f *types.Fault
	return errors.As(err, &f) && f.Kind == types.FaultDisconnected && f.Err == nil
}

func (l *Layer) clock() clock.Clock {
	switch {
	case l.upper != nil:
		return l.upper.Clock()
	case l.lower != nil:
		return l.lower.Point().Pipe().Clock()
	}
	return clock.New()
}

// setSettled 登记本层泵的结束信号
func (l *Layer) setSettled(ch <-chan struct{}) {
	l.mu.Lock()
	l.settled = ch
	l.mu.Unlock()
}

// detach 注销断开传播并释放下层句柄
func (l *Layer) detach() {
	l.mu.Lock()
	removers := l.removers
	l.removers = nil
	l.mu.Unlock()
	for _, rm := range removers {
		rm()
	}
	if l.lower != nil {
		_ = l.lower.Close()
	}
}

// ============================================================================
//                              状态
// ============================================================================

// Name 返回层名称
func (l *Layer) Name() string { return l.name }

// State 返回当前状态
func (l *Layer) State() types.StackState {
	return types.StackState(l.state.Load())
}

func (l *Layer) transition(from, to types.StackState) bool {
	return l.state.CompareAndSwap(int32(from), int32(to))
}

// ============================================================================
//                              访问器
// ============================================================================

// Upper 返回交给上一层的端点（上层管道的 B 端）；顶层返回 nil
func (l *Layer) Upper() *pipe.Point {
	if l.upper == nil {
		return nil
	}
	return l.upper.B()
}

// UpperPipe 返回本层拥有的上层管道
func (l *Layer) UpperPipe() *pipe.DuplexPipe { return l.upper }

// Lower 返回下层端点的附着句柄；底层返回 nil
func (l *Layer) Lower() *pipe.AttachHandle { return l.lower }

func (l *Layer) owned() *pipe.DuplexPipe {
	if l.upper != nil {
		return l.upper
	}
	return l.lower.Point().Pipe()
}

// Exceptions 返回合并后的异常队列
func (l *Layer) Exceptions() *pipe.ExceptionQueue { return l.owned().Exceptions() }

// Layers 返回合并后的层信息层级
func (l *Layer) Layers() *pipe.LayerHierarchy { return l.owned().Layers() }

// Done 本层管道取消时关闭
func (l *Layer) Done() <-chan struct{} { return l.owned().Done() }

// Err 返回最先记录的故障；没有故障时返回管道的取消原因
func (l *Layer) Err() error {
	if err := l.Exceptions().First(); err != nil {
		return err
	}
	return l.owned().Err()
}

// Cancel 取消本层；err 非空时记入异常队列
func (l *Layer) Cancel(err error) {
	l.state.Store(int32(types.StateClosed))
	l.owned().Cancel(err)
}

// Close 正常关闭本层
func (l *Layer) Close() error {
	l.Cancel(nil)
	return nil
}
