package netstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/muxer"
	"github.com/dep2p/go-netpipe/internal/core/security"
	"github.com/dep2p/go-netpipe/internal/core/transport"
)

// TestModule 通过 Fx 组装工厂
func TestModule(t *testing.T) {
	var f *Factory
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(config.NewConfig()),
		transport.Module(),
		security.Module(),
		muxer.Module(),
		Module(),
		fx.Populate(&f),
	)
	app.RequireStart()

	require.NotNil(t, f)
	assert.NotNil(t, f.handshaker)
	assert.NotNil(t, f.muxer)

	s := f.NewTCPStub()
	require.NoError(t, s.Listen("127.0.0.1:0"))

	app.RequireStop()
	waitClosed(t, s.Done(), "停止时应关闭协议栈")
	t.Log("✅ netstack 模块测试通过")
}

// TestModule_WithoutOptional 只有传输时仍可构造
func TestModule_WithoutOptional(t *testing.T) {
	var f *Factory
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(config.NewConfig()),
		transport.Module(),
		Module(),
		fx.Populate(&f),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.Nil(t, f.handshaker)
	_, err := f.NewMuxStack(nil)
	assert.ErrorIs(t, err, ErrNoMuxer)
}
