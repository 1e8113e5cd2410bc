package buffer

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netpipe/pkg/types"
)

func flatten(segs [][]byte) []byte {
	return bytes.Join(segs, nil)
}

func checkInvariants(t *testing.T, b *StreamBuffer) {
	t.Helper()
	s := b.Stats()
	require.LessOrEqual(t, s.PinHead, s.PinTail)
	require.Equal(t, s.PinTail-s.PinHead, s.Len)
	require.GreaterOrEqual(t, s.Len, int64(0))
	require.Equal(t, s.Len, int64(len(flatten(b.Peek(0)))))
}

// TestStreamBuffer_PinInvariants 随机操作序列后 pin 不变量始终成立
func TestStreamBuffer_PinInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	b := NewStreamBuffer(4096)
	var model []byte
	var lastHead int64

	for i := 0; i < 2000; i++ {
		switch rng.Intn(6) {
		case 0, 1:
			p := make([]byte, rng.Intn(300))
			rng.Read(p)
			require.NoError(t, b.Enqueue(p))
			model = append(model, p...)
		case 2:
			n := rng.Int63n(500)
			got := flatten(b.Dequeue(n, true))
			require.Equal(t, model[:len(got)], got)
			model = model[len(got):]
		case 3:
			got := flatten(b.Dequeue(rng.Int63n(500), false))
			require.Equal(t, model[:len(got)], got)
			model = model[len(got):]
		case 4:
			p := make([]byte, rng.Intn(200))
			n := b.DequeueBytes(p)
			require.Equal(t, model[:n], p[:n])
			model = model[n:]
		case 5:
			if l := b.Len(); l > 2 {
				pin := b.PinHead() + rng.Int63n(l-1)
				size := 1 + rng.Int63n(b.PinTail()-pin)
				view, err := b.GetContiguous(pin, size)
				require.NoError(t, err)
				off := pin - b.PinHead()
				require.Equal(t, model[off:off+size], view)
			}
		}
		checkInvariants(t, b)
		require.GreaterOrEqual(t, b.PinHead(), lastHead, "PinHead 必须单调")
		lastHead = b.PinHead()
	}
	require.Equal(t, model, flatten(b.DequeueAll()))
	t.Log("✅ pin 不变量测试通过")
}

// TestStreamBuffer_Dequeue 测试最小读取与拆分
func TestStreamBuffer_Dequeue(t *testing.T) {
	b := NewStreamBuffer(1024)
	require.NoError(t, b.EnqueueAll([][]byte{[]byte("abc"), []byte("defg"), []byte("hi")}))

	// 不拆分：整段取出直到 >= 4
	got := b.Dequeue(4, false)
	assert.Equal(t, [][]byte{[]byte("abc"), []byte("defg")}, got)
	assert.Equal(t, int64(7), b.PinHead())

	require.NoError(t, b.Enqueue([]byte("jklmn")))
	got = b.Dequeue(3, true)
	assert.Equal(t, "hij", string(flatten(got)))
	assert.Equal(t, int64(10), b.PinHead())
	assert.Equal(t, "klmn", string(flatten(b.DequeueAll())))
	assert.Nil(t, b.Dequeue(1, true))
}

// TestStreamBuffer_Peek 测试 Peek 不移动 PinHead
func TestStreamBuffer_Peek(t *testing.T) {
	b := NewStreamBuffer(1024)
	require.NoError(t, b.EnqueueAll([][]byte{[]byte("hello"), []byte(" world")}))

	assert.Equal(t, "hello wo", string(flatten(b.Peek(8))))
	p := make([]byte, 7)
	assert.Equal(t, 7, b.PeekBytes(p))
	assert.Equal(t, "hello w", string(p))
	assert.Equal(t, int64(0), b.PinHead())
	assert.Equal(t, int64(11), b.Len())
}

// TestStreamBuffer_ThresholdExample 阈值 1024，写入 2000 字节，读取 976 字节后恢复可写
func TestStreamBuffer_ThresholdExample(t *testing.T) {
	b := NewStreamBuffer(1024)
	require.NoError(t, b.Enqueue(make([]byte, 2000)))
	b.CompleteWrite()

	assert.False(t, b.IsReadyToWrite())

	b.Dequeue(975, true)
	assert.False(t, b.IsReadyToWrite())
	assert.Len(t, b.Writable(), 0)

	b.Dequeue(1, true)
	assert.True(t, b.IsReadyToWrite())
	assert.Len(t, b.Writable(), 1, "回落时通知一次")

	// 再次读取不会重复通知
	<-b.Writable()
	b.Dequeue(10, true)
	assert.Len(t, b.Writable(), 0)

	// 再次越过阈值后回落，再通知一次
	require.NoError(t, b.Enqueue(make([]byte, 100)))
	assert.False(t, b.IsReadyToWrite())
	b.Dequeue(200, true)
	assert.Len(t, b.Writable(), 1)
}

// TestStreamBuffer_NonStopPolicies 测试不阻塞写策略
func TestStreamBuffer_NonStopPolicies(t *testing.T) {
	t.Run("force", func(t *testing.T) {
		b := NewStreamBuffer(4)
		n, err := b.EnqueueNonStop([]byte("123456"), types.PolicyForce)
		require.NoError(t, err)
		assert.Equal(t, 6, n)
		assert.Equal(t, int64(6), b.Len())
	})

	t.Run("discard-incoming", func(t *testing.T) {
		b := NewStreamBuffer(5)
		require.NoError(t, b.Enqueue([]byte("ab")))
		n, err := b.EnqueueNonStop([]byte("cdefg"), types.PolicyDiscardIncoming)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, "abcde", string(flatten(b.Peek(0))))

		n, err = b.EnqueueNonStop([]byte("x"), types.PolicyDiscardIncoming)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("discard-existing", func(t *testing.T) {
		b := NewStreamBuffer(5)
		require.NoError(t, b.Enqueue([]byte("abcd")))
		n, err := b.EnqueueNonStop([]byte("xyz"), types.PolicyDiscardExisting)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, "cdxyz", string(flatten(b.Peek(0))))
		assert.Equal(t, int64(2), b.PinHead())

		n, err = b.EnqueueNonStop([]byte("0123456789"), types.PolicyDiscardExisting)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "56789", string(flatten(b.Peek(0))))
	})
}

// TestStreamBuffer_Remove 测试范围删除
func TestStreamBuffer_Remove(t *testing.T) {
	b := NewStreamBuffer(1024)
	require.NoError(t, b.EnqueueAll([][]byte{[]byte("0123"), []byte("4567"), []byte("89")}))

	require.NoError(t, b.Remove(3, 3))
	assert.Equal(t, "0126789", string(flatten(b.Peek(0))))
	assert.Equal(t, int64(0), b.PinHead())
	assert.Equal(t, int64(7), b.PinTail())

	require.NoError(t, b.Remove(0, 2))
	assert.Equal(t, int64(2), b.PinHead())
	assert.Equal(t, "26789", string(flatten(b.Peek(0))))

	assert.ErrorIs(t, b.Remove(0, 1), types.ErrInvalidRange)
	assert.ErrorIs(t, b.Remove(5, 10), types.ErrInvalidRange)
	checkInvariants(t, b)
}

// TestStreamBuffer_GetContiguous 测试连续视图
func TestStreamBuffer_GetContiguous(t *testing.T) {
	b := NewStreamBuffer(1024)
	require.NoError(t, b.EnqueueAll([][]byte{[]byte("abc"), []byte("def"), []byte("ghi"), []byte("jk")}))
	assert.Equal(t, 4, b.Segments())

	// 单段内无需合并
	view, err := b.GetContiguous(4, 2)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(view))
	assert.Equal(t, 4, b.Segments())

	// 跨段就地合并
	view, err = b.GetContiguous(2, 5)
	require.NoError(t, err)
	assert.Equal(t, "cdefg", string(view))
	assert.Equal(t, 2, b.Segments())
	assert.Equal(t, "abcdefghijk", string(flatten(b.Peek(0))))

	_, err = b.GetContiguous(10, 5)
	assert.ErrorIs(t, err, types.ErrInvalidRange)
	checkInvariants(t, b)
}

// TestStreamBuffer_Events 测试事件发布
func TestStreamBuffer_Events(t *testing.T) {
	b := NewStreamBuffer(1024)
	var mu sync.Mutex
	var events []types.BufferEvent
	remove := b.AddListener(func(ev types.BufferEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	require.NoError(t, b.Enqueue([]byte("a")))
	b.CompleteWrite()
	require.NoError(t, b.Enqueue([]byte("b")))
	b.CompleteWrite()
	b.CompleteWrite() // 无新数据，不发布
	b.Dequeue(1, true)
	b.CompleteRead()
	b.Dequeue(1, true)
	b.CompleteRead()

	mu.Lock()
	assert.Equal(t, []types.BufferEvent{
		types.EventWritten, types.EventEmptyToNonEmpty,
		types.EventWritten,
		types.EventRead,
		types.EventRead, types.EventNonEmptyToEmpty,
	}, events)
	mu.Unlock()

	remove()
	require.NoError(t, b.Enqueue([]byte("c")))
	b.CompleteWrite()
	mu.Lock()
	assert.Len(t, events, 6)
	mu.Unlock()
}

// TestStreamBuffer_ListenerPanic 监听器 panic 不影响其它监听器
func TestStreamBuffer_ListenerPanic(t *testing.T) {
	b := NewStreamBuffer(16)
	called := 0
	b.AddListener(func(types.BufferEvent) { panic("boom") })
	b.AddListener(func(types.BufferEvent) { called++ })

	require.NoError(t, b.Enqueue([]byte("x")))
	assert.NotPanics(t, b.CompleteWrite)
	assert.Equal(t, 2, called)
}

// TestStreamBuffer_Disconnect 断开后写入失败、读取可排空，首个故障保留
func TestStreamBuffer_Disconnect(t *testing.T) {
	b := NewStreamBuffer(16)
	require.NoError(t, b.Enqueue([]byte("tail")))

	root := errors.New("peer reset")
	assert.True(t, b.Disconnect(root))
	assert.False(t, b.Disconnect(errors.New("second")))

	err := b.Enqueue([]byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.ErrorIs(t, err, types.ErrDisconnected)
	assert.Nil(t, b.Drained())

	assert.Equal(t, "tail", string(flatten(b.DequeueAll())))
	assert.ErrorIs(t, b.Drained(), root)
	assert.True(t, b.IsReadyToWrite())
	assert.True(t, b.IsReadyToRead(100))

	select {
	case <-b.Done():
	default:
		t.Fatal("Done 应已关闭")
	}
}

// TestStreamBuffer_Wait 测试等待可读/可写
func TestStreamBuffer_Wait(t *testing.T) {
	b := NewStreamBuffer(4)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = b.Enqueue([]byte("hello"))
		b.CompleteWrite()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.WaitReadable(ctx, 5))

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Dequeue(0, false)
		b.CompleteRead()
	}()
	require.NoError(t, b.WaitWritable(ctx))

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, b.WaitReadable(short, 1), context.DeadlineExceeded)

	b.Disconnect(nil)
	assert.NoError(t, b.WaitReadable(ctx, 1))
}
