package netpipe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/netstack"
	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/internal/protocol/vault"
	"github.com/dep2p/go-netpipe/pkg/types"
)

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{
		WithInsecureSkipVerify(),
		WithPollInterval(20 * time.Millisecond),
	}, opts...)
	rt, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

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

// TestNew_Options 预设与覆盖项按顺序生效
func TestNew_Options(t *testing.T) {
	rt := newRuntime(t,
		WithPreset(PresetLowLatency),
		WithStreamThreshold(1<<20),
		WithHandshakeTimeout(3*time.Second),
	)

	cfg := rt.Config()
	assert.Equal(t, int64(1<<20), cfg.Pipe.StreamThreshold)
	assert.True(t, cfg.TCP.NoDelay)
	assert.True(t, cfg.TLS.InsecureSkipVerify)
	assert.Equal(t, 3*time.Second, cfg.TLS.HandshakeTimeout.Duration())
	assert.Equal(t, 20*time.Millisecond, cfg.Pump.PollInterval.Duration())
	assert.NotNil(t, rt.Certificate())
	assert.NotNil(t, rt.Factory())
	t.Log("✅ 选项测试通过")
}

// TestNew_BandwidthDisabled 关闭统计时不提供计数器
func TestNew_BandwidthDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Bandwidth.Enabled = false
	rt := newRuntime(t, WithConfig(cfg))
	assert.Nil(t, rt.Bandwidth())
}

// TestNew_InvalidOptions 无效选项在构建前返回错误
func TestNew_InvalidOptions(t *testing.T) {
	for _, opt := range []Option{
		WithPreset("unknown"),
		WithConfig(nil),
		WithConfigFile(""),
		WithStreamThreshold(0),
		WithIdleTimeouts(-time.Second, 0),
		WithCertificate("cert.pem", ""),
		WithStartTimeout(0),
	} {
		_, err := New(opt)
		assert.Error(t, err)
	}

	_, err := New(WithConfigFile(filepath.Join(t.TempDir(), "missing.json")))
	assert.Error(t, err)
}

// TestNew_ConfigFile 从文件加载配置，调用方配置不被修改
func TestNew_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netpipe.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pipe":{"stream_threshold":4096}}`), 0o600))

	rt := newRuntime(t, WithConfigFile(path))
	assert.Equal(t, int64(4096), rt.Config().Pipe.StreamThreshold)

	base := config.NewConfig()
	rt2 := newRuntime(t, WithConfig(base), WithStreamThreshold(2048))
	assert.Equal(t, int64(2048), rt2.Config().Pipe.StreamThreshold)
	assert.Equal(t, config.DefaultPipeConfig().StreamThreshold, base.Pipe.StreamThreshold)
}

// TestNew_FxOption 用户 Fx 选项可取出内部组件
func TestNew_FxOption(t *testing.T) {
	var f *netstack.Factory
	rt := newRuntime(t, WithFxOption(fx.Populate(&f)))
	assert.Same(t, rt.Factory(), f)
}

// TestRuntime_TLSEcho 经 TLS 协议栈往返
func TestRuntime_TLSEcho(t *testing.T) {
	rt := newRuntime(t)
	ctx := testContext(t)

	l, err := rt.Listen("127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		srv, err := rt.AcceptTLS(ctx, l)
		if err != nil {
			return
		}
		app, err := rt.Attach(srv.Upper())
		if err != nil {
			return
		}
		echo(ctx, app.Stream())
	}()

	cli, err := rt.DialTLS(ctx, l.Addr().String(), "localhost")
	require.NoError(t, err)
	app, err := rt.Attach(cli.Upper())
	require.NoError(t, err)

	require.NoError(t, app.Stream().Send(ctx, []byte("hello netpipe")))
	got, err := app.Stream().ReceiveAll(ctx, len("hello netpipe"))
	require.NoError(t, err)
	assert.Equal(t, "hello netpipe", string(got))

	require.Len(t, cli.Layers().TLSInfos(), 1)
	require.Len(t, cli.Layers().TCPInfos(), 1)
	assert.Equal(t, types.DirOutbound, cli.Layers().TCPInfos()[0].Direction)

	require.NotNil(t, rt.Bandwidth())
	assert.Eventually(t, func() bool {
		return rt.Bandwidth().ForLayer("tls").TotalOut >= int64(len("hello netpipe")) &&
			rt.Bandwidth().ForLayer("tcp").TotalOut > 0
	}, 5*time.Second, 10*time.Millisecond)
	t.Log("✅ TLS 往返测试通过")
}

// TestRuntime_VaultOverMux 帧协议运行在 TLS 之上的多路复用子流上
func TestRuntime_VaultOverMux(t *testing.T) {
	rt := newRuntime(t)
	ctx := testContext(t)

	l, err := rt.Listen("127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() {
		srv, err := rt.AcceptTLS(ctx, l)
		if err != nil {
			served <- err
			return
		}
		mux, err := rt.Mux(srv.Upper(), true)
		if err != nil {
			served <- err
			return
		}
		sub, err := mux.AcceptStream(ctx)
		if err != nil {
			served <- err
			return
		}
		served <- rt.ServeVault(ctx, sub, nil)
	}()

	cli, err := rt.DialTLS(ctx, l.Addr().String(), "localhost")
	require.NoError(t, err)
	mux, err := rt.Mux(cli.Upper(), false)
	require.NoError(t, err)
	sub, err := mux.OpenStream(ctx)
	require.NoError(t, err)

	vc, err := rt.VaultClient(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), vc.Version())

	require.NoError(t, vc.Put(ctx, "k", []byte("v")))
	v, err := vc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))
	_, err = vc.Get(ctx, "nope")
	assert.ErrorIs(t, err, vault.ErrNotFound)

	// 子流层级继承 TLS 与 TCP 信息
	assert.Len(t, vc.Stream().Point().Layers().TLSInfos(), 1)

	require.NoError(t, vc.Bye(ctx))
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("ServeVault 未返回")
	}
	t.Log("✅ 多路复用帧协议测试通过")
}

// TestRuntime_Close 关闭运行时关闭全部协议栈
func TestRuntime_Close(t *testing.T) {
	rt, err := New(WithPollInterval(20 * time.Millisecond))
	require.NoError(t, err)
	ctx := testContext(t)

	l, err := rt.Listen("127.0.0.1:0")
	require.NoError(t, err)
	go func() { _, _ = rt.Accept(ctx, l) }()

	s, err := rt.Dial(ctx, l.Addr().String())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rt.Factory().Live(), 2)

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("协议栈未随运行时关闭")
	}
	assert.Equal(t, types.StateClosed, l.State())

	_, err = rt.Dial(ctx, l.Addr().String())
	assert.ErrorIs(t, err, ErrRuntimeClosed)
	_, err = rt.Listen("127.0.0.1:0")
	assert.ErrorIs(t, err, ErrRuntimeClosed)
	_, err = rt.Accept(ctx, nil)
	assert.ErrorIs(t, err, ErrNotListener)
}

// TestPreset_Config 预设生成配置
func TestPreset_Config(t *testing.T) {
	cfg, err := PresetBulk.Config()
	require.NoError(t, err)
	assert.Equal(t, int64(8*1024*1024), cfg.Pipe.StreamThreshold)

	_, err = Preset("nope").Config()
	assert.Error(t, err)
	assert.Contains(t, VersionInfo(), Version)
}
