package netstack

import (
	"context"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/bandwidth"
	"github.com/dep2p/go-netpipe/internal/core/muxer/yamux"
	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/internal/core/transport/tcp"
	"github.com/dep2p/go-netpipe/pkg/types"

	tlsimpl "github.com/dep2p/go-netpipe/internal/core/security/tls"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Pump.PollInterval = config.Duration(20 * time.Millisecond)
	opts.TLS.HandshakeTimeout = config.Duration(3 * time.Second)
	opts.DrainTimeout = time.Second
	return opts
}

// newFactories 返回服务端与客户端工厂，客户端信任服务端的自签名证书
func newFactories(t *testing.T) (server, client *Factory) {
	t.Helper()
	tr := tcp.NewTransport(config.DefaultTCPConfig())
	t.Cleanup(func() { _ = tr.Close() })

	serverHS, err := tlsimpl.NewHandshaker(config.DefaultTLSConfig())
	require.NoError(t, err)
	pool := x509.NewCertPool()
	pool.AddCert(serverHS.Certificate().Leaf)
	clientHS, err := tlsimpl.NewHandshaker(config.DefaultTLSConfig(), tlsimpl.WithRootCAs(pool))
	require.NoError(t, err)

	mx := yamux.NewFactory(config.DefaultMuxConfig())
	server = NewFactory(testOptions(), tr, serverHS, mx)
	client = NewFactory(testOptions(), tr, clientHS, mx)
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return server, client
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// echo 把收到的数据原样写回，直到断开
func echo(ctx context.Context, s *pipe.Stream) {
	for {
		b, err := s.Receive(ctx, 0)
		if err != nil {
			return
		}
		if err := s.Send(ctx, b); err != nil {
			return
		}
	}
}

// tcpPair 建立一对已连接的底层协议栈
func tcpPair(t *testing.T, server, client *Factory) (listener, accepted, dialed *TCPStub) {
	t.Helper()
	ctx := testContext(t)

	listener = server.NewTCPStub()
	require.NoError(t, listener.Listen("127.0.0.1:0"))
	assert.Equal(t, types.StateListening, listener.State())

	acceptCh := make(chan *TCPStub, 1)
	go func() {
		s, err := listener.Accept(ctx)
		if err == nil {
			acceptCh <- s
		}
	}()

	dialed = client.NewTCPStub()
	require.NoError(t, dialed.Connect(ctx, listener.Addr().String(), 0))
	select {
	case accepted = <-acceptCh:
	case <-ctx.Done():
		t.Fatal("accept 超时")
	}
	return listener, accepted, dialed
}

func waitClosed(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal(msg)
	}
}

// ============================================================================
//                              TCPStub
// ============================================================================

// TestTCPStub_StartOnce Connect 与 Listen 互斥且只能调用一次
func TestTCPStub_StartOnce(t *testing.T) {
	server, _ := newFactories(t)
	ctx := testContext(t)

	s := server.NewTCPStub()
	assert.Equal(t, types.StateUnattached, s.State())
	_, err := s.Accept(ctx)
	assert.ErrorIs(t, err, types.ErrNotListening)

	require.NoError(t, s.Listen("127.0.0.1:0"))
	assert.ErrorIs(t, s.Listen("127.0.0.1:0"), types.ErrAlreadyStarted)
	assert.ErrorIs(t, s.Connect(ctx, "127.0.0.1:1", 0), types.ErrAlreadyStarted)

	require.NoError(t, s.Close())
	assert.Equal(t, types.StateClosed, s.State())
	_, err = s.Accept(ctx)
	assert.Error(t, err)
	t.Log("✅ TCPStub 单次启动测试通过")
}

// TestTCPStub_Echo 经 TCP 往返，并通过层级查询两端地址
func TestTCPStub_Echo(t *testing.T) {
	server, client := newFactories(t)
	ctx := testContext(t)
	listener, accepted, dialed := tcpPair(t, server, client)

	srvApp, err := server.NewAppStub(accepted.Upper())
	require.NoError(t, err)
	go echo(ctx, srvApp.Stream())

	app, err := client.NewAppStub(dialed.Upper())
	require.NoError(t, err)
	require.NoError(t, app.Stream().Send(ctx, []byte("hello stack")))
	got, err := app.Stream().ReceiveAll(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, "hello stack", string(got))

	port := listener.Info().LocalPort
	require.Len(t, dialed.Layers().TCPInfos(), 1)
	assert.Equal(t, port, dialed.Layers().TCPInfos()[0].RemotePort)
	assert.Equal(t, dialed.Info().LocalAddr().String(), app.Stream().LocalAddr().String())
	assert.Equal(t, types.StateConnected, dialed.State())

	// 接受端的层级合并了监听信息，自身连接信息在上
	infos := accepted.Layers().TCPInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, port, infos[0].LocalPort)
	assert.Equal(t, dialed.Info().LocalPort, infos[0].RemotePort)
	assert.Equal(t, types.DirInbound, infos[0].Direction)
	assert.Equal(t, 0, infos[1].RemotePort)
	assert.Len(t, listener.Layers().TCPInfos(), 1, "监听端不受接受端影响")

	require.NoError(t, app.Close())
	waitClosed(t, accepted.Done(), "对端未观察到断开")
	assert.NotErrorIs(t, accepted.Err(), types.ErrResourceFault)
	t.Log("✅ TCPStub 往返测试通过")
}

// TestTCPStub_ConnectRefused 连接失败以资源故障回滚
func TestTCPStub_ConnectRefused(t *testing.T) {
	server, client := newFactories(t)
	ctx := testContext(t)

	l := server.NewTCPStub()
	require.NoError(t, l.Listen("127.0.0.1:0"))
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := client.NewTCPStub()
	err := s.Connect(ctx, addr, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrResourceFault)
	assert.Equal(t, types.StateClosed, s.State())
	waitClosed(t, s.Done(), "失败后上层管道应取消")
	assert.ErrorIs(t, s.Err(), types.ErrResourceFault)
	assert.Nil(t, s.Wrapper())
}

// TestTCPStub_ConnectTimeout 连接超时以超时故障回滚
func TestTCPStub_ConnectTimeout(t *testing.T) {
	_, client := newFactories(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	s := client.NewTCPStub()
	err := s.Connect(ctx, "127.0.0.1:9", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTimeout)
	waitClosed(t, s.Done(), "失败后上层管道应取消")
	assert.ErrorIs(t, s.Err(), types.ErrTimeout)
}

// ============================================================================
//                              TLSStack
// ============================================================================

// tlsPair 在一对 TCP 协议栈之上完成 TLS 握手
func tlsPair(t *testing.T, server, client *Factory) (srvTCP, cliTCP *TCPStub, srvTLS, cliTLS *TLSStack) {
	t.Helper()
	ctx := testContext(t)
	_, srvTCP, cliTCP = tcpPair(t, server, client)

	var err error
	srvTLS, err = server.NewTLSStack(srvTCP.Upper())
	require.NoError(t, err)
	cliTLS, err = client.NewTLSStack(cliTCP.Upper())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srvTLS.StartAsServer(ctx) }()
	require.NoError(t, cliTLS.StartAsClient(ctx, "localhost"))
	require.NoError(t, <-errCh)
	return srvTCP, cliTCP, srvTLS, cliTLS
}

// TestTLSStack_Echo 明文经 TLS 往返，层级同时可见 TLS 与 TCP 信息
func TestTLSStack_Echo(t *testing.T) {
	server, client := newFactories(t)
	ctx := testContext(t)
	_, cliTCP, srvTLS, cliTLS := tlsPair(t, server, client)

	srvApp, err := server.NewAppStub(srvTLS.Upper())
	require.NoError(t, err)
	go echo(ctx, srvApp.Stream())

	app, err := client.NewAppStub(cliTLS.Upper())
	require.NoError(t, err)
	payload := make([]byte, 100_000)
	for i := range payload {
		payload[i] = byte(i)
	}
	go func() { _ = app.Stream().Send(ctx, payload) }()
	got, err := app.Stream().ReceiveAll(ctx, len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	all := cliTLS.Layers().All()
	require.Len(t, all, 2)
	assert.Equal(t, types.LayerTLS, all[0].Kind())
	assert.Equal(t, types.LayerTCP, all[1].Kind())
	assert.Equal(t, "TLS 1.3", cliTLS.Info().ProtocolName())
	assert.Same(t, cliTLS.Layers().TLSInfos()[0], cliTLS.Info())
	assert.Equal(t, cliTCP.Info().LocalAddr().String(), app.Stream().LocalAddr().String())
	assert.Equal(t, types.StateConnected, cliTLS.State())

	assert.ErrorIs(t, cliTLS.StartAsClient(ctx, "localhost"), types.ErrAlreadyStarted)
	assert.ErrorIs(t, srvTLS.StartAsServer(ctx), types.ErrAlreadyStarted)
	t.Log("✅ TLS 往返测试通过")
}

// TestTLSStack_Bandwidth 各层泵按协议层记录流量
func TestTLSStack_Bandwidth(t *testing.T) {
	server, client := newFactories(t)
	ctx := testContext(t)

	counter := bandwidth.NewCounter(config.DefaultBandwidthConfig(), nil)
	client.opts.Bandwidth = counter
	_, _, srvTLS, cliTLS := tlsPair(t, server, client)

	srvApp, err := server.NewAppStub(srvTLS.Upper())
	require.NoError(t, err)
	go echo(ctx, srvApp.Stream())

	app, err := client.NewAppStub(cliTLS.Upper())
	require.NoError(t, err)
	payload := []byte("counted bytes")
	require.NoError(t, app.Stream().Send(ctx, payload))
	_, err = app.Stream().ReceiveAll(ctx, len(payload))
	require.NoError(t, err)

	n := int64(len(payload))
	require.Eventually(t, func() bool {
		tls := counter.ForLayer("tls")
		return tls.TotalOut == n && tls.TotalIn == n
	}, 5*time.Second, 10*time.Millisecond)

	// 密文带有记录开销与握手数据
	tcp := counter.ForLayer("tcp")
	assert.Greater(t, tcp.TotalOut, n)
	assert.Greater(t, tcp.TotalIn, n)
	assert.Equal(t, counter.Totals().TotalOut, tcp.TotalOut+counter.ForLayer("tls").TotalOut)
	t.Log("✅ 分层流量统计测试通过")
}

// TestTLSStack_CancelBottom 取消底层后明文上层无需直接操作即观察到断开
func TestTLSStack_CancelBottom(t *testing.T) {
	server, client := newFactories(t)
	ctx := testContext(t)
	srvTCP, cliTCP, srvTLS, cliTLS := tlsPair(t, server, client)

	app, err := client.NewAppStub(cliTLS.Upper())
	require.NoError(t, err)

	require.NoError(t, cliTCP.Close())
	waitClosed(t, cliTLS.Done(), "上层管道未观察到断开")
	_, err = app.Stream().Receive(ctx, 0)
	assert.ErrorIs(t, err, types.ErrDisconnected)

	// 对端整条栈也随之结束
	waitClosed(t, srvTCP.Done(), "对端 TCP 未断开")
	waitClosed(t, srvTLS.Done(), "对端 TLS 未断开")
}

// TestTLSStack_CancelTop 关闭顶层后向下传播到底层
func TestTLSStack_CancelTop(t *testing.T) {
	server, client := newFactories(t)
	_, cliTCP, _, cliTLS := tlsPair(t, server, client)

	app, err := client.NewAppStub(cliTLS.Upper())
	require.NoError(t, err)
	require.NoError(t, app.Close())

	waitClosed(t, cliTLS.Done(), "TLS 上层未取消")
	waitClosed(t, cliTCP.Done(), "底层未取消")
}

// TestTLSStack_HandshakeFailure 证书不受信任时回滚并返回协议故障
func TestTLSStack_HandshakeFailure(t *testing.T) {
	server, _ := newFactories(t)
	ctx := testContext(t)

	// 客户端不信任服务端的自签名证书
	strict, err := tlsimpl.NewHandshaker(config.DefaultTLSConfig())
	require.NoError(t, err)
	tr := tcp.NewTransport(config.DefaultTCPConfig())
	defer tr.Close()
	client := NewFactory(testOptions(), tr, strict, nil)
	defer client.Close()

	_, srvTCP, cliTCP := tcpPair(t, server, client)
	srvTLS, err := server.NewTLSStack(srvTCP.Upper())
	require.NoError(t, err)
	cliTLS, err := client.NewTLSStack(cliTCP.Upper())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srvTLS.StartAsServer(ctx) }()

	err = cliTLS.StartAsClient(ctx, "localhost")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrProtocolViolation)
	assert.ErrorIs(t, <-errCh, types.ErrProtocolViolation)

	waitClosed(t, cliTLS.Done(), "失败后上层管道应取消")
	assert.Equal(t, types.StateClosed, cliTLS.State())
	assert.Nil(t, cliTLS.Info())
	assert.Empty(t, cliTCP.Layers().TLSInfos())

	// 下层已释放但保持连接，可以重新附着
	assert.False(t, cliTCP.Upper().IsAttached())
	assert.False(t, cliTCP.UpperPipe().IsCanceled())
	h, err := cliTCP.Upper().Attach(pipe.AttachOptions{})
	require.NoError(t, err)
	require.NoError(t, h.Close())

	assert.ErrorIs(t, cliTLS.StartAsClient(ctx, "localhost"), types.ErrAlreadyStarted)
}

// silentPair 建立 TCP 连接与客户端 TLS 协议栈，服务端从不握手
func silentPair(t *testing.T) (cliTCP *TCPStub, cliTLS *TLSStack) {
	t.Helper()
	server, client := newFactories(t)
	_, srvTCP, cliTCP := tcpPair(t, server, client)
	h, err := srvTCP.Upper().Attach(pipe.AttachOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	cliTLS, err = client.NewTLSStack(cliTCP.Upper())
	require.NoError(t, err)
	return cliTCP, cliTLS
}

// TestTLSStack_HandshakeCanceled 取消握手只回滚本层，下层保持连接
func TestTLSStack_HandshakeCanceled(t *testing.T) {
	cliTCP, cliTLS := silentPair(t)

	ctx, cancel := context.WithCancel(testContext(t))
	time.AfterFunc(200*time.Millisecond, cancel)
	err := cliTLS.StartAsClient(ctx, "localhost")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	waitClosed(t, cliTLS.Done(), "失败后上层管道应取消")
	assert.False(t, cliTCP.UpperPipe().IsCanceled())
	assert.False(t, cliTCP.Upper().IsAttached())
	h, err := cliTCP.Upper().Attach(pipe.AttachOptions{})
	require.NoError(t, err)
	require.NoError(t, h.Close())
	t.Log("✅ 取消握手测试通过")
}

// TestTLSStack_HandshakeTimeout 握手超时以超时故障回滚
func TestTLSStack_HandshakeTimeout(t *testing.T) {
	cliTCP, cliTLS := silentPair(t)

	ctx, cancel := context.WithTimeout(testContext(t), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := cliTLS.StartAsClient(ctx, "localhost")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Less(t, time.Since(start), 3*time.Second)

	waitClosed(t, cliTLS.Done(), "失败后上层管道应取消")
	assert.ErrorIs(t, cliTLS.Err(), types.ErrTimeout)
	assert.False(t, cliTCP.UpperPipe().IsCanceled())
}

// TestTLSStack_NoHandshaker 未配置握手器
func TestTLSStack_NoHandshaker(t *testing.T) {
	f := NewFactory(testOptions(), nil, nil, nil)
	p := pipe.New(pipe.DefaultConfig())
	_, err := f.NewTLSStack(p.B())
	assert.ErrorIs(t, err, ErrNoHandshaker)
	assert.False(t, p.B().IsAttached())
}
