package buffer

import (
	"github.com/dep2p/go-netpipe/pkg/types"
)

// StreamBuffer 字节流弹性缓冲区
//
// 入队的切片按引用保存（零拷贝），调用方入队后不得再修改。
type StreamBuffer struct {
	core
	segs [][]byte
}

// NewStreamBuffer 创建流缓冲区，threshold 单位为字节
func NewStreamBuffer(threshold int64) *StreamBuffer {
	b := &StreamBuffer{}
	b.init(threshold)
	return b
}

// ============================================================================
//                              写入
// ============================================================================

// Enqueue 追加一段数据
func (b *StreamBuffer) Enqueue(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writeErrLocked(); err != nil {
		return err
	}
	b.appendLocked(p)
	return nil
}

// EnqueueAll 追加多段数据
func (b *StreamBuffer) EnqueueAll(bufs [][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writeErrLocked(); err != nil {
		return err
	}
	for _, p := range bufs {
		b.appendLocked(p)
	}
	return nil
}

// EnqueueNonStop 按策略写入且不等待，返回实际接受的字节数
func (b *StreamBuffer) EnqueueNonStop(p []byte, policy types.NonStopWritePolicy) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writeErrLocked(); err != nil {
		return 0, err
	}

	switch policy {
	case types.PolicyDiscardIncoming:
		room := b.threshold - (b.pinTail - b.pinHead)
		if room <= 0 {
			return 0, nil
		}
		if int64(len(p)) > room {
			p = p[:room]
		}
	case types.PolicyDiscardExisting:
		if int64(len(p)) >= b.threshold {
			b.discardHeadLocked(b.pinTail - b.pinHead)
			p = p[int64(len(p))-b.threshold:]
		} else if over := b.pinTail - b.pinHead + int64(len(p)) - b.threshold; over > 0 {
			b.discardHeadLocked(over)
		}
	}
	b.appendLocked(p)
	return len(p), nil
}

func (b *StreamBuffer) appendLocked(p []byte) {
	if len(p) == 0 {
		return
	}
	b.segs = append(b.segs, p)
	b.wroteLocked(int64(len(p)))
}

// ============================================================================
//                              读取
// ============================================================================

// Dequeue 取出至少 minSize 字节（不足时取出全部）
//
// allowSplit 为 true 时拆分最后一段，恰好返回 minSize 字节；
// minSize <= 0 取出全部。
func (b *StreamBuffer) Dequeue(minSize int64, allowSplit bool) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dequeueLocked(minSize, allowSplit)
}

// DequeueAll 取出全部数据
func (b *StreamBuffer) DequeueAll() [][]byte {
	return b.Dequeue(0, false)
}

// DequeueBytes 拷贝至多 len(p) 字节到 p
func (b *StreamBuffer) DequeueBytes(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for n < len(p) && len(b.segs) > 0 {
		c := copy(p[n:], b.segs[0])
		n += c
		if c == len(b.segs[0]) {
			b.popLocked()
		} else {
			b.segs[0] = b.segs[0][c:]
		}
	}
	if n > 0 {
		b.consumedLocked(int64(n))
	}
	return n
}

func (b *StreamBuffer) dequeueLocked(minSize int64, allowSplit bool) [][]byte {
	length := b.pinTail - b.pinHead
	if length == 0 {
		return nil
	}
	if minSize <= 0 || minSize > length {
		minSize = length
	}

	var out [][]byte
	var taken int64
	for taken < minSize {
		seg := b.segs[0]
		if rest := minSize - taken; allowSplit && int64(len(seg)) > rest {
			out = append(out, seg[:rest])
			b.segs[0] = seg[rest:]
			taken += rest
			break
		}
		out = append(out, seg)
		taken += int64(len(seg))
		b.popLocked()
	}
	b.consumedLocked(taken)
	return out
}

func (b *StreamBuffer) popLocked() {
	b.segs[0] = nil
	b.segs = b.segs[1:]
	if len(b.segs) == 0 {
		b.segs = nil
	}
}

// discardHeadLocked 丢弃最旧的 n 字节，PinHead 前移
func (b *StreamBuffer) discardHeadLocked(n int64) {
	var dropped int64
	for dropped < n && len(b.segs) > 0 {
		seg := b.segs[0]
		if rest := n - dropped; int64(len(seg)) > rest {
			b.segs[0] = seg[rest:]
			dropped += rest
			break
		}
		dropped += int64(len(seg))
		b.popLocked()
	}
	if dropped > 0 {
		b.consumedLocked(dropped)
	}
}

// Peek 返回至多 max 字节的只读视图，不移动 PinHead；max <= 0 返回全部
func (b *StreamBuffer) Peek(max int64) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out [][]byte
	var taken int64
	for _, seg := range b.segs {
		if max > 0 && taken+int64(len(seg)) > max {
			if rest := max - taken; rest > 0 {
				out = append(out, seg[:rest])
			}
			break
		}
		out = append(out, seg)
		taken += int64(len(seg))
	}
	return out
}

// PeekBytes 拷贝至多 len(p) 字节到 p，不移动 PinHead
func (b *StreamBuffer) PeekBytes(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, seg := range b.segs {
		if n == len(p) {
			break
		}
		n += copy(p[n:], seg)
	}
	return n
}

// ============================================================================
//                              随机访问
// ============================================================================

// Remove 删除 [pin, pin+length) 范围的数据
//
// 从头部删除时 PinHead 前移；其它位置删除时后续数据前移，PinTail 减少。
func (b *StreamBuffer) Remove(pin, length int64) error {
	if length == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if length < 0 || pin < b.pinHead || pin+length > b.pinTail {
		return types.ErrInvalidRange
	}
	if pin == b.pinHead {
		b.discardHeadLocked(length)
		return nil
	}

	start := pin - b.pinHead
	end := start + length
	kept := make([][]byte, 0, len(b.segs)+1)
	var off int64
	for _, seg := range b.segs {
		segStart, segEnd := off, off+int64(len(seg))
		off = segEnd
		if segEnd <= start || segStart >= end {
			kept = append(kept, seg)
			continue
		}
		if segStart < start {
			kept = append(kept, seg[:start-segStart])
		}
		if segEnd > end {
			kept = append(kept, seg[end-segStart:])
		}
	}
	b.segs = kept
	b.pinTail -= length
	b.pendingRead = true
	b.noteLengthLocked()
	return nil
}

// GetContiguous 返回 [pin, pin+size) 的连续视图
//
// 范围落在单个段内时直接返回子切片；跨段时把覆盖到的段就地合并为一段。
func (b *StreamBuffer) GetContiguous(pin, size int64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if size < 0 || pin < b.pinHead || pin+size > b.pinTail {
		return nil, types.ErrInvalidRange
	}
	if size == 0 {
		return []byte{}, nil
	}

	rel := pin - b.pinHead
	first := 0
	var firstStart int64
	for ; first < len(b.segs); first++ {
		segLen := int64(len(b.segs[first]))
		if rel < firstStart+segLen {
			break
		}
		firstStart += segLen
	}

	inner := rel - firstStart
	if inner+size <= int64(len(b.segs[first])) {
		return b.segs[first][inner : inner+size], nil
	}

	last := first
	covered := firstStart + int64(len(b.segs[first]))
	for covered < rel+size {
		last++
		covered += int64(len(b.segs[last]))
	}

	merged := make([]byte, 0, covered-firstStart)
	for i := first; i <= last; i++ {
		merged = append(merged, b.segs[i]...)
	}
	segs := make([][]byte, 0, len(b.segs)-(last-first))
	segs = append(segs, b.segs[:first]...)
	segs = append(segs, merged)
	segs = append(segs, b.segs[last+1:]...)
	b.segs = segs

	return merged[inner : inner+size], nil
}

// Segments 返回当前段数
func (b *StreamBuffer) Segments() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.segs)
}

// Clear 丢弃全部数据
func (b *StreamBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.discardHeadLocked(b.pinTail - b.pinHead)
}
