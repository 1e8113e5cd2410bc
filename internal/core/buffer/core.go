package buffer

import (
	"context"
	"sync"

	"github.com/dep2p/go-netpipe/internal/util/logger"
	"github.com/dep2p/go-netpipe/pkg/types"
)

var log = logger.Logger("buffer")

// Listener 缓冲区事件监听器
type Listener func(ev types.BufferEvent)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Stats 缓冲区快照
type Stats struct {
	PinHead      int64
	PinTail      int64
	Len          int64
	Threshold    int64
	Disconnected bool
}

// core 流缓冲区与数据报缓冲区共享的状态：计数、阈值、就绪信号、事件与断开
type core struct {
	mu sync.Mutex

	threshold int64
	pinHead   int64
	pinTail   int64

	// overThreshold 自上次回落后 Len 是否越过阈值
	overThreshold bool
	// announcedEmpty 最近一次发布的空/非空状态
	announcedEmpty bool
	pendingWrite   bool
	pendingRead    bool

	disconnected bool
	fault        *types.Fault

	readable chan struct{}
	writable chan struct{}
	done     chan struct{}

	listeners  []listenerEntry
	listenerID uint64
}

func (c *core) init(threshold int64) {
	if threshold < 0 {
		threshold = 0
	}
	c.threshold = threshold
	c.announcedEmpty = true
	c.readable = make(chan struct{}, 1)
	c.writable = make(chan struct{}, 1)
	c.done = make(chan struct{})
}

// ============================================================================
//                              计数与阈值
// ============================================================================

// PinHead 返回有效数据起始偏移
func (c *core) PinHead() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pinHead
}

// PinTail 返回有效数据结束偏移
func (c *core) PinTail() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pinTail
}

// Len 返回未读数据量
func (c *core) Len() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pinTail - c.pinHead
}

// Threshold 返回背压阈值
func (c *core) Threshold() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

// SetThreshold 调整背压阈值
func (c *core) SetThreshold(threshold int64) {
	if threshold < 0 {
		threshold = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threshold = threshold
	c.noteLengthLocked()
}

// Stats 返回缓冲区快照
func (c *core) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		PinHead:      c.pinHead,
		PinTail:      c.pinTail,
		Len:          c.pinTail - c.pinHead,
		Threshold:    c.threshold,
		Disconnected: c.disconnected,
	}
}

// IsReadyToWrite 写入方是否可以继续写入
//
// 断开或 Len() <= Threshold() 时返回 true；否则登记写入方在等待，
// 下次回落到阈值以下时通过 Writable() 通知。
func (c *core) IsReadyToWrite() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected || c.pinTail-c.pinHead <= c.threshold {
		return true
	}
	c.overThreshold = true
	return false
}

// IsReadyToRead 是否至少有 n 个单位可读（断开时总为 true）
func (c *core) IsReadyToRead(n int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected || c.pinTail-c.pinHead >= n
}

// noteLengthLocked 维护越过/回落阈值的状态，回落时通知一次 Writable
func (c *core) noteLengthLocked() {
	length := c.pinTail - c.pinHead
	if length > c.threshold {
		c.overThreshold = true
		return
	}
	if c.overThreshold {
		c.overThreshold = false
		signal(c.writable)
	}
}

func (c *core) wroteLocked(n int64) {
	c.pinTail += n
	c.pendingWrite = true
	c.noteLengthLocked()
}

func (c *core) consumedLocked(n int64) {
	c.pinHead += n
	c.pendingRead = true
	c.noteLengthLocked()
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// ============================================================================
//                              就绪信号
// ============================================================================

// Readable 写入完成或断开时收到通知（容量 1）
func (c *core) Readable() <-chan struct{} {
	return c.readable
}

// Writable 回落到阈值以下或断开时收到通知（容量 1）
func (c *core) Writable() <-chan struct{} {
	return c.writable
}

// Done 断开时关闭
func (c *core) Done() <-chan struct{} {
	return c.done
}

// WaitReadable 等待至少 n 个单位可读或断开
func (c *core) WaitReadable(ctx context.Context, n int64) error {
	for {
		if c.IsReadyToRead(n) {
			return nil
		}
		select {
		case <-c.readable:
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitWritable 等待可写或断开
func (c *core) WaitWritable(ctx context.Context) error {
	for {
		if c.IsReadyToWrite() {
			return nil
		}
		select {
		case <-c.writable:
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ============================================================================
//                              事件
// ============================================================================

// AddListener 注册事件监听器，返回注销函数
func (c *core) AddListener(fn Listener) (remove func()) {
	c.mu.Lock()
	c.listenerID++
	id := c.listenerID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, e := range c.listeners {
				if e.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

// CompleteWrite 发布写入完成（flush 边界）
func (c *core) CompleteWrite() {
	c.mu.Lock()
	if !c.pendingWrite {
		c.mu.Unlock()
		return
	}
	c.pendingWrite = false
	events := []types.BufferEvent{types.EventWritten}
	if c.announcedEmpty && c.pinTail > c.pinHead {
		c.announcedEmpty = false
		events = append(events, types.EventEmptyToNonEmpty)
	}
	signal(c.readable)
	listeners := c.listeners
	c.mu.Unlock()

	c.dispatch(listeners, events)
}

// CompleteRead 发布读取完成
func (c *core) CompleteRead() {
	c.mu.Lock()
	if !c.pendingRead {
		c.mu.Unlock()
		return
	}
	c.pendingRead = false
	events := []types.BufferEvent{types.EventRead}
	if !c.announcedEmpty && c.pinTail == c.pinHead {
		c.announcedEmpty = true
		events = append(events, types.EventNonEmptyToEmpty)
	}
	listeners := c.listeners
	c.mu.Unlock()

	c.dispatch(listeners, events)
}

// dispatch 在锁外调用监听器；监听器 panic 被记录并丢弃
func (c *core) dispatch(listeners []listenerEntry, events []types.BufferEvent) {
	for _, ev := range events {
		for _, e := range listeners {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Warn("缓冲区事件监听器 panic", "event", ev, "panic", r)
					}
				}()
				e.fn(ev)
			}()
		}
	}
}

// ============================================================================
//                              断开
// ============================================================================

// Disconnect 断开缓冲区
//
// 只有第一次调用生效并返回 true；reason 为 nil 时记录一个断开故障。
func (c *core) Disconnect(reason error) bool {
	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return false
	}
	c.disconnected = true
	if reason == nil {
		c.fault = types.NewFault(types.FaultDisconnected, "buffer", nil)
	} else {
		c.fault = types.AsFault(reason, types.FaultDisconnected, "buffer")
	}
	close(c.done)
	signal(c.readable)
	signal(c.writable)
	listeners := c.listeners
	c.mu.Unlock()

	c.dispatch(listeners, []types.BufferEvent{types.EventDisconnected})
	return true
}

// IsDisconnected 是否已断开
func (c *core) IsDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// Err 返回首个断开故障；未断开时为 nil
func (c *core) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault == nil {
		return nil
	}
	return c.fault
}

// Drained 断开且没有剩余数据时返回首个断开故障
func (c *core) Drained() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected && c.pinTail == c.pinHead {
		return c.fault
	}
	return nil
}

func (c *core) writeErrLocked() error {
	if c.disconnected {
		return c.fault
	}
	return nil
}
