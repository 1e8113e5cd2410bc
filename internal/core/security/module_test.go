package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/pkg/interfaces"

	tlsimpl "github.com/dep2p/go-netpipe/internal/core/security/tls"
)

// TestModule_Provide 模块提供握手器
func TestModule_Provide(t *testing.T) {
	var hs interfaces.Handshaker
	var impl *tlsimpl.Handshaker

	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(config.NewConfig()),
		Module(),
		fx.Populate(&hs, &impl),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, hs)
	assert.Same(t, impl, hs)
	assert.NotNil(t, impl.Certificate().Leaf)
	t.Log("✅ 安全模块测试通过")
}

// TestProvideServices_BadConfig 无效配置返回错误
func TestProvideServices_BadConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.TLS.MinVersion = "1.0"
	_, err := ProvideServices(cfg)
	assert.ErrorIs(t, err, tlsimpl.ErrInvalidVersion)

	out, err := ProvideServices(nil)
	require.NoError(t, err)
	assert.NotNil(t, out.Handshaker)
}
