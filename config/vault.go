package config

import "errors"

// VaultConfig 帧协议配置
type VaultConfig struct {
	// Version 握手时发送的协议版本
	Version uint32 `json:"version"`

	// MaxFrameSize 单帧负载上限（字节）
	MaxFrameSize int `json:"max_frame_size"`
}

// DefaultVaultConfig 返回默认帧协议配置
func DefaultVaultConfig() VaultConfig {
	return VaultConfig{
		Version:      1,
		MaxFrameSize: 16 * 1024 * 1024,
	}
}

// Validate 验证帧协议配置
func (c VaultConfig) Validate() error {
	if c.Version == 0 {
		return errors.New("vault: version must be non-zero")
	}
	if c.MaxFrameSize <= 0 {
		return errors.New("vault: max_frame_size must be positive")
	}
	return nil
}
