// Package yamux 提供基于 hashicorp/yamux 的多路复用中间层
package yamux

import (
	"io"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-netpipe/config"
)

// ConfigToYamux 将 config.MuxConfig 转换为 yamux.Config
func ConfigToYamux(cfg config.MuxConfig) *yamux.Config {
	yc := yamux.DefaultConfig()
	yc.LogOutput = io.Discard
	yc.ConnectionWriteTimeout = 10 * time.Second

	if cfg.AcceptBacklog > 0 {
		yc.AcceptBacklog = cfg.AcceptBacklog
	}
	if cfg.MaxStreamWindowSize > 0 {
		yc.MaxStreamWindowSize = cfg.MaxStreamWindowSize
	}
	if d := cfg.KeepAliveInterval.Duration(); d > 0 {
		yc.KeepAliveInterval = d
	}
	if d := cfg.StreamOpenTimeout.Duration(); d > 0 {
		yc.StreamOpenTimeout = d
	}
	yc.EnableKeepAlive = cfg.EnableKeepAlive

	return yc
}
