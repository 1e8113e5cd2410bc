package config

import "errors"

// PipeConfig 双工管道配置
type PipeConfig struct {
	// StreamThreshold 流缓冲区背压阈值（字节）
	StreamThreshold int64 `json:"stream_threshold"`

	// DatagramThreshold 数据报缓冲区背压阈值（个数）
	DatagramThreshold int64 `json:"datagram_threshold"`

	// ReceiveTimeout 流接收空闲超时，0 表示不启用
	ReceiveTimeout Duration `json:"receive_timeout,omitempty"`

	// SendTimeout 流发送空闲超时，0 表示不启用
	SendTimeout Duration `json:"send_timeout,omitempty"`

	// AllowAttachDisconnected 是否允许附着已断开且无剩余数据的管道端
	AllowAttachDisconnected bool `json:"allow_attach_disconnected,omitempty"`
}

// DefaultPipeConfig 返回默认管道配置
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		StreamThreshold:   512 * 1024,
		DatagramThreshold: 4096,
	}
}

// Validate 验证管道配置
func (c PipeConfig) Validate() error {
	if c.StreamThreshold <= 0 {
		return errors.New("pipe: stream_threshold must be positive")
	}
	if c.DatagramThreshold <= 0 {
		return errors.New("pipe: datagram_threshold must be positive")
	}
	if c.ReceiveTimeout < 0 || c.SendTimeout < 0 {
		return errors.New("pipe: idle timeouts must not be negative")
	}
	return nil
}
