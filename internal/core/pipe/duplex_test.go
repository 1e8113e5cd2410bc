package pipe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netpipe/pkg/types"
)

// TestDuplexPipe_Wiring 两端的读写缓冲区交叉连接
func TestDuplexPipe_Wiring(t *testing.T) {
	a, b := NewPair(1024, 8)

	assert.Same(t, a.StreamWriter(), b.StreamReader())
	assert.Same(t, b.StreamWriter(), a.StreamReader())
	assert.Same(t, a.DatagramWriter(), b.DatagramReader())
	assert.Same(t, b.DatagramWriter(), a.DatagramReader())
	assert.Same(t, b, a.Counterpart())
	assert.Same(t, a, b.Counterpart())
	assert.Same(t, a.Exceptions(), b.Exceptions())
	assert.Same(t, a.Layers(), b.Layers())
	assert.Equal(t, int64(1024), a.StreamWriter().Threshold())
	assert.Equal(t, int64(8), a.DatagramWriter().Threshold())
	assert.Equal(t, types.SideA, a.Side())
	assert.Equal(t, types.SideB, b.Side())

	p1, p2 := New(DefaultConfig()), New(DefaultConfig())
	assert.NotEqual(t, p1.ID(), p2.ID())
	t.Log("✅ 管道连线测试通过")
}

// TestDuplexPipe_Cancel 取消断开全部缓冲区并且只调用一次回调
func TestDuplexPipe_Cancel(t *testing.T) {
	p := New(Config{StreamThreshold: 64, DatagramThreshold: 4})

	var calls atomic.Int32
	var seen error
	p.OnDisconnect(func(err error) {
		calls.Add(1)
		seen = err
	})
	p.OnDisconnect(func(error) { panic("callback boom") })
	removed := p.OnDisconnect(func(error) { t.Error("已注销的回调不应被调用") })
	removed()

	root := errors.New("socket reset")
	p.Cancel(root)
	p.Cancel(errors.New("second"))

	assert.Equal(t, int32(1), calls.Load())
	assert.ErrorIs(t, seen, root)
	assert.ErrorIs(t, p.Err(), root)
	assert.True(t, p.IsCanceled())
	assert.True(t, p.A().StreamWriter().IsDisconnected())
	assert.True(t, p.A().StreamReader().IsDisconnected())
	assert.True(t, p.A().DatagramWriter().IsDisconnected())
	assert.True(t, p.A().DatagramReader().IsDisconnected())
	assert.Equal(t, 1, p.Exceptions().Len())

	select {
	case <-p.Done():
	default:
		t.Fatal("Done 应已关闭")
	}

	// 取消后注册的回调立即执行
	var late atomic.Bool
	p.OnDisconnect(func(err error) {
		late.Store(true)
		assert.ErrorIs(t, err, root)
	})
	assert.True(t, late.Load())
}

// TestDuplexPipe_CloseIsNotAFault 正常关闭不记入异常队列
func TestDuplexPipe_CloseIsNotAFault(t *testing.T) {
	p := New(DefaultConfig())
	require.NoError(t, p.Close())
	assert.Equal(t, 0, p.Exceptions().Len())
	assert.True(t, types.IsDisconnected(p.Err()))
}

// TestPoint_Attach 同一端点只能有一个有效句柄
func TestPoint_Attach(t *testing.T) {
	a, _ := NewPair(1024, 8)

	h1, err := a.Attach(AttachOptions{Direction: types.DirOutbound})
	require.NoError(t, err)
	assert.True(t, a.IsAttached())
	assert.Equal(t, types.DirOutbound, h1.Direction())

	_, err = a.Attach(AttachOptions{})
	assert.ErrorIs(t, err, types.ErrAlreadyAttached)

	require.NoError(t, h1.Close())
	require.NoError(t, h1.Close())
	assert.False(t, a.IsAttached())

	h2, err := a.Attach(AttachOptions{})
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)
	assert.ErrorIs(t, h1.Stream().Send(context.Background(), []byte("x")), types.ErrDetached)
	require.NoError(t, h2.Close())
}

// TestPoint_AttachDisconnected 已排空断开的端点默认拒绝附着
func TestPoint_AttachDisconnected(t *testing.T) {
	p := New(Config{StreamThreshold: 1024, DatagramThreshold: 8})
	require.NoError(t, p.A().StreamWriter().Enqueue([]byte("left")))
	p.Cancel(nil)

	// B 端仍有数据可读
	hb, err := p.B().Attach(AttachOptions{})
	require.NoError(t, err)
	require.NoError(t, hb.Close())

	// A 端没有剩余数据
	_, err = p.A().Attach(AttachOptions{})
	assert.ErrorIs(t, err, types.ErrDisconnected)
	assert.False(t, p.A().IsAttached(), "失败的附着必须归还令牌")

	ha, err := p.A().Attach(AttachOptions{AllowDisconnected: true})
	require.NoError(t, err)
	require.NoError(t, ha.Close())
}

// TestPoint_AttachAfterCloseWrite 对端半关闭后端点仍可附着并写入
func TestPoint_AttachAfterCloseWrite(t *testing.T) {
	a, b := NewPair(1024, 8)
	hb, err := b.Attach(AttachOptions{})
	require.NoError(t, err)
	defer hb.Close()
	require.NoError(t, hb.Stream().CloseWrite())

	assert.False(t, a.IsDrained())
	ha, err := a.Attach(AttachOptions{})
	require.NoError(t, err)
	defer ha.Close()
	assert.False(t, a.Pipe().IsCanceled())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ha.Stream().Send(ctx, []byte("reply")))
	got, err := hb.Stream().ReceiveAll(ctx, len("reply"))
	require.NoError(t, err)
	assert.Equal(t, "reply", string(got))

	// 读方向已结束
	_, err = ha.Stream().Receive(ctx, 0)
	assert.ErrorIs(t, err, types.ErrDisconnected)
	t.Log("✅ 半关闭后附着测试通过")
}

// TestPoint_ThresholdExample 阈值 1024 的管道，A 写入 2000 字节，B 读取 976 字节后 A 可写
func TestPoint_ThresholdExample(t *testing.T) {
	a, b := NewPair(1024, 8)
	require.NoError(t, a.StreamWriter().Enqueue(make([]byte, 2000)))
	a.StreamWriter().CompleteWrite()
	assert.False(t, a.StreamWriter().IsReadyToWrite())

	hb, err := b.Attach(AttachOptions{})
	require.NoError(t, err)
	defer hb.Close()

	got, err := hb.Stream().Receive(context.Background(), 975)
	require.NoError(t, err)
	require.Len(t, got, 975)
	assert.False(t, a.StreamWriter().IsReadyToWrite())

	got, err = hb.Stream().Receive(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, a.StreamWriter().IsReadyToWrite())
}
