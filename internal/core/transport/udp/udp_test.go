package udp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSocket_RoundTrip 测试数据报收发
func TestSocket_RoundTrip(t *testing.T) {
	server, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, server.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.SendTo(ctx, []byte("ping"), nil)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, from, err := server.ReceiveFrom(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
	assert.Equal(t, client.LocalAddr().String(), from.String())

	_, err = server.SendTo(ctx, []byte("pong"), from)
	require.NoError(t, err)
	n, _, err = client.ReceiveFrom(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(buf[:n]))
	t.Log("✅ UDP 往返测试通过")
}

// TestSocket_ReceiveCanceled ctx 取消打断阻塞接收
func TestSocket_ReceiveCanceled(t *testing.T) {
	s, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, _, err = s.ReceiveFrom(ctx, make([]byte, 16))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 打断后 socket 仍可使用
	_, err = s.SendTo(context.Background(), []byte("x"), nil)
	assert.ErrorIs(t, err, ErrNoPeer)
}
