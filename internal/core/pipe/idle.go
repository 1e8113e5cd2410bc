package pipe

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-netpipe/internal/core/buffer"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// idleDetector 空闲超时检测器
//
// 监听缓冲区事件重置定时器；定时器到期时若 idle() 仍成立则触发 fire，
// 否则重新计时。被监视的缓冲区断开后（finished() 成立）不再计时。
// stop 不等待正在执行的回调，因此可以在断开回调中调用。
type idleDetector struct {
	mu      sync.Mutex
	timer   *clock.Timer
	d       time.Duration
	stopped bool

	idle     func() bool
	finished func() bool
	fire     func()
	removes []func()
}

// resetEvents 重置检测器的事件集合
type resetEvents map[types.BufferEvent]bool

func newIdleDetector(clk clock.Clock, d time.Duration, idle, finished func() bool, fire func()) *idleDetector {
	det := &idleDetector{d: d, idle: idle, finished: finished, fire: fire}
	det.mu.Lock()
	det.timer = clk.AfterFunc(d, det.expired)
	det.mu.Unlock()
	return det
}

// watch 在缓冲区上注册重置事件
func (det *idleDetector) watch(b interface {
	AddListener(buffer.Listener) func()
}, events resetEvents) {
	remove := b.AddListener(func(ev types.BufferEvent) {
		if events[ev] {
			det.reset()
		}
	})
	det.mu.Lock()
	det.removes = append(det.removes, remove)
	det.mu.Unlock()
}

func (det *idleDetector) reset() {
	det.mu.Lock()
	defer det.mu.Unlock()
	if !det.stopped {
		det.timer.Reset(det.d)
	}
}

func (det *idleDetector) expired() {
	det.mu.Lock()
	if det.stopped {
		det.mu.Unlock()
		return
	}
	if det.finished() {
		det.stopped = true
		det.mu.Unlock()
		return
	}
	if !det.idle() {
		det.timer.Reset(det.d)
		det.mu.Unlock()
		return
	}
	det.stopped = true
	det.mu.Unlock()

	det.fire()
}

// active 定时器是否仍在计时
func (det *idleDetector) active() bool {
	det.mu.Lock()
	defer det.mu.Unlock()
	return !det.stopped
}

func (det *idleDetector) stop() {
	det.mu.Lock()
	if det.stopped && det.removes == nil {
		det.mu.Unlock()
		return
	}
	det.stopped = true
	det.timer.Stop()
	removes := det.removes
	det.removes = nil
	det.mu.Unlock()

	for _, remove := range removes {
		remove()
	}
}

// newReceiveDetector 接收空闲：对端在 d 内没有写入任何数据
func newReceiveDetector(p *Point, d time.Duration) *idleDetector {
	reader := p.StreamReader()
	det := newIdleDetector(p.pipe.clk, d,
		func() bool {
			return reader.Len() == 0
		},
		reader.IsDisconnected,
		func() {
			log.Debug("接收空闲超时", "point", p.String(), "timeout", d)
			p.pipe.Cancel(types.NewFault(types.FaultTimeout, "stream receive idle", nil))
		},
	)
	det.watch(reader, resetEvents{
		types.EventWritten:         true,
		types.EventNonEmptyToEmpty: true,
	})
	return det
}

// newSendDetector 发送空闲：本端有待发送数据而对端在 d 内没有读取
func newSendDetector(p *Point, d time.Duration) *idleDetector {
	writer := p.StreamWriter()
	det := newIdleDetector(p.pipe.clk, d,
		func() bool {
			return writer.Len() > 0
		},
		writer.IsDisconnected,
		func() {
			log.Debug("发送空闲超时", "point", p.String(), "timeout", d)
			p.pipe.Cancel(types.NewFault(types.FaultTimeout, "stream send idle", nil))
		},
	)
	det.watch(writer, resetEvents{
		types.EventRead:            true,
		types.EventEmptyToNonEmpty: true,
	})
	return det
}
