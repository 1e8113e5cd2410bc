package pipe

import (
	"sync"
)

// mergeMu 串行化所有 Encounter 合并操作
var mergeMu sync.Mutex

// exceptionCore 异常队列的共享状态
//
// 合并后被吸收的一方通过 forward 指向存活的一方。
type exceptionCore struct {
	mu      sync.Mutex
	errs    []error
	notify  chan struct{}
	// linked 被合并方尚未关闭的 notify，随第一个故障一起关闭
	linked  []chan struct{}
	forward *exceptionCore
}

func newExceptionCore() *exceptionCore {
	return &exceptionCore{notify: make(chan struct{})}
}

// ExceptionQueue 共享异常队列
//
// 同一管道的两个端点共享一个队列；协议栈组装时上下层队列通过 Encounter 合并，
// 合并后任一持有者都能看到全部故障。
type ExceptionQueue struct {
	core *exceptionCore
}

// NewExceptionQueue 创建空队列
func NewExceptionQueue() *ExceptionQueue {
	return &ExceptionQueue{core: newExceptionCore()}
}

// lock 锁定当前存活的核心并返回
func (q *ExceptionQueue) lock() *exceptionCore {
	c := q.core
	for {
		c.mu.Lock()
		if c.forward == nil {
			return c
		}
		next := c.forward
		c.mu.Unlock()
		c = next
	}
}

func (q *ExceptionQueue) root() *exceptionCore {
	c := q.lock()
	c.mu.Unlock()
	return c
}

// Raise 追加故障；nil 忽略
func (q *ExceptionQueue) Raise(err error) {
	if err == nil {
		return
	}
	c := q.lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
	if len(c.errs) == 1 {
		c.closeNotifyLocked()
	}
}

func (c *exceptionCore) closeNotifyLocked() {
	close(c.notify)
	for _, ch := range c.linked {
		close(ch)
	}
	c.linked = nil
}

// First 返回最早的故障
func (q *ExceptionQueue) First() error {
	c := q.lock()
	defer c.mu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs[0]
}

// All 返回全部故障的副本
func (q *ExceptionQueue) All() []error {
	c := q.lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}

// Len 返回故障数
func (q *ExceptionQueue) Len() int {
	c := q.lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// Notify 队列出现第一个故障时关闭
func (q *ExceptionQueue) Notify() <-chan struct{} {
	c := q.lock()
	defer c.mu.Unlock()
	return c.notify
}

// Encounter 合并 other 到当前队列
//
// other 的故障排在当前队列之后；合并后两边的所有持有者共享同一队列。
func (q *ExceptionQueue) Encounter(other *ExceptionQueue) {
	if other == nil {
		return
	}
	mergeMu.Lock()
	defer mergeMu.Unlock()

	// 持有 mergeMu 期间 forward 不会变化
	dst, src := q.root(), other.root()
	if src == dst {
		return
	}
	dst.mu.Lock()
	defer dst.mu.Unlock()
	src.mu.Lock()
	defer src.mu.Unlock()

	hadErrs := len(dst.errs) > 0
	srcErrs := len(src.errs) > 0
	dst.errs = append(dst.errs, src.errs...)
	switch {
	case !hadErrs && srcErrs:
		dst.closeNotifyLocked()
	case hadErrs && !srcErrs:
		src.closeNotifyLocked()
	case !hadErrs && !srcErrs:
		dst.linked = append(dst.linked, src.notify)
		dst.linked = append(dst.linked, src.linked...)
	}
	src.errs = nil
	src.linked = nil
	src.forward = dst
}
