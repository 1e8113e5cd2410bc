package config

import (
	"errors"
	"time"
)

// TCPConfig TCP 协议栈配置
type TCPConfig struct {
	// ConnectTimeout 连接超时
	ConnectTimeout Duration `json:"connect_timeout"`

	// KeepAlivePeriod KeepAlive 周期，0 表示禁用
	KeepAlivePeriod Duration `json:"keep_alive_period"`

	// NoDelay 是否禁用 Nagle 算法
	NoDelay bool `json:"no_delay"`
}

// DefaultTCPConfig 返回默认 TCP 配置
func DefaultTCPConfig() TCPConfig {
	return TCPConfig{
		ConnectTimeout:  Duration(15 * time.Second),
		KeepAlivePeriod: Duration(30 * time.Second),
		NoDelay:         true,
	}
}

// Validate 验证 TCP 配置
func (c TCPConfig) Validate() error {
	if c.ConnectTimeout <= 0 {
		return errors.New("tcp: connect_timeout must be positive")
	}
	if c.KeepAlivePeriod < 0 {
		return errors.New("tcp: keep_alive_period must not be negative")
	}
	return nil
}
