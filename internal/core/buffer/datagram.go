package buffer

import (
	"github.com/dep2p/go-netpipe/pkg/types"
)

// DatagramBuffer 数据报弹性缓冲区，pin 与阈值以数据报个数计
type DatagramBuffer struct {
	core
	items []types.Datagram
}

// NewDatagramBuffer 创建数据报缓冲区，threshold 单位为个
func NewDatagramBuffer(threshold int64) *DatagramBuffer {
	b := &DatagramBuffer{}
	b.init(threshold)
	return b
}

// Enqueue 追加一个数据报
func (b *DatagramBuffer) Enqueue(d types.Datagram) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writeErrLocked(); err != nil {
		return err
	}
	b.items = append(b.items, d)
	b.wroteLocked(1)
	return nil
}

// EnqueueAll 追加多个数据报
func (b *DatagramBuffer) EnqueueAll(ds []types.Datagram) error {
	if len(ds) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writeErrLocked(); err != nil {
		return err
	}
	b.items = append(b.items, ds...)
	b.wroteLocked(int64(len(ds)))
	return nil
}

// EnqueueNonStop 按策略写入且不等待，返回实际接受的个数
func (b *DatagramBuffer) EnqueueNonStop(ds []types.Datagram, policy types.NonStopWritePolicy) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writeErrLocked(); err != nil {
		return 0, err
	}

	switch policy {
	case types.PolicyDiscardIncoming:
		room := b.threshold - int64(len(b.items))
		if room <= 0 {
			return 0, nil
		}
		if int64(len(ds)) > room {
			ds = ds[:room]
		}
	case types.PolicyDiscardExisting:
		if int64(len(ds)) >= b.threshold {
			b.dropLocked(len(b.items))
			ds = ds[int64(len(ds))-b.threshold:]
		} else if over := int64(len(b.items)+len(ds)) - b.threshold; over > 0 {
			b.dropLocked(int(over))
		}
	}
	if len(ds) == 0 {
		return 0, nil
	}
	b.items = append(b.items, ds...)
	b.wroteLocked(int64(len(ds)))
	return len(ds), nil
}

// Dequeue 取出至多 max 个数据报；max <= 0 取出全部
func (b *DatagramBuffer) Dequeue(max int) []types.Datagram {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.items)
	if n == 0 {
		return nil
	}
	if max > 0 && max < n {
		n = max
	}
	out := make([]types.Datagram, n)
	copy(out, b.items[:n])
	b.dropLocked(n)
	return out
}

// DequeueAll 取出全部数据报
func (b *DatagramBuffer) DequeueAll() []types.Datagram {
	return b.Dequeue(0)
}

// Peek 返回至多 max 个数据报的副本，不移动 PinHead；max <= 0 返回全部
func (b *DatagramBuffer) Peek(max int) []types.Datagram {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.items)
	if max > 0 && max < n {
		n = max
	}
	out := make([]types.Datagram, n)
	copy(out, b.items[:n])
	return out
}

// Clear 丢弃全部数据报
func (b *DatagramBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropLocked(len(b.items))
}

func (b *DatagramBuffer) dropLocked(n int) {
	if n <= 0 {
		return
	}
	clear(b.items[:n])
	b.items = b.items[n:]
	if len(b.items) == 0 {
		b.items = nil
	}
	b.consumedLocked(int64(n))
}
