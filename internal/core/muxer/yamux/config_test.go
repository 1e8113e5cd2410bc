package yamux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netpipe/config"
)

// TestConfigToYamux 配置映射
func TestConfigToYamux(t *testing.T) {
	cfg := config.DefaultMuxConfig()
	cfg.AcceptBacklog = 64
	cfg.KeepAliveInterval = config.Duration(5 * time.Second)
	cfg.MaxStreamWindowSize = 512 * 1024

	yc := ConfigToYamux(cfg)
	assert.Equal(t, 64, yc.AcceptBacklog)
	assert.Equal(t, 5*time.Second, yc.KeepAliveInterval)
	assert.Equal(t, uint32(512*1024), yc.MaxStreamWindowSize)
	assert.True(t, yc.EnableKeepAlive)

	cfg.EnableKeepAlive = false
	cfg.StreamOpenTimeout = 0
	yc = ConfigToYamux(cfg)
	assert.False(t, yc.EnableKeepAlive)
	require.Greater(t, yc.StreamOpenTimeout, time.Duration(0))
}
