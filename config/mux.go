package config

import (
	"errors"
	"time"
)

// MuxConfig yamux 多路复用配置
type MuxConfig struct {
	// AcceptBacklog 未接受流的积压上限
	AcceptBacklog int `json:"accept_backlog"`

	// EnableKeepAlive 是否启用心跳
	EnableKeepAlive bool `json:"enable_keep_alive"`

	// KeepAliveInterval 心跳间隔
	KeepAliveInterval Duration `json:"keep_alive_interval"`

	// MaxStreamWindowSize 单流接收窗口
	MaxStreamWindowSize uint32 `json:"max_stream_window_size"`

	// StreamOpenTimeout 打开流超时
	StreamOpenTimeout Duration `json:"stream_open_timeout"`
}

// DefaultMuxConfig 返回默认多路复用配置
func DefaultMuxConfig() MuxConfig {
	return MuxConfig{
		AcceptBacklog:       256,
		EnableKeepAlive:     true,
		KeepAliveInterval:   Duration(30 * time.Second),
		MaxStreamWindowSize: 256 * 1024,
		StreamOpenTimeout:   Duration(75 * time.Second),
	}
}

// Validate 验证多路复用配置
func (c MuxConfig) Validate() error {
	if c.AcceptBacklog <= 0 {
		return errors.New("mux: accept_backlog must be positive")
	}
	// yamux 要求窗口不小于 256KB
	if c.MaxStreamWindowSize < 256*1024 {
		return errors.New("mux: max_stream_window_size must be >= 262144")
	}
	if c.EnableKeepAlive && c.KeepAliveInterval <= 0 {
		return errors.New("mux: keep_alive_interval must be positive when keep-alive is enabled")
	}
	return nil
}
