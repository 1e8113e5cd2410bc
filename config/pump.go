package config

import (
	"errors"
	"time"
)

// PumpConfig 泵适配器配置
type PumpConfig struct {
	// PollInterval 等待缓冲区就绪的最长轮询间隔
	PollInterval Duration `json:"poll_interval"`

	// ReadSize 单次从外部资源读取的最大字节数
	ReadSize int `json:"read_size"`

	// MaxBatchBytes 单次批量写出的最大字节数
	MaxBatchBytes int `json:"max_batch_bytes"`

	// MaxDatagramBatch 单次批量写出的最大数据报个数
	MaxDatagramBatch int `json:"max_datagram_batch"`

	// BytesPerSecond 带宽限制，0 表示不限速
	BytesPerSecond int `json:"bytes_per_second,omitempty"`
}

// DefaultPumpConfig 返回默认泵配置
func DefaultPumpConfig() PumpConfig {
	return PumpConfig{
		PollInterval:     Duration(time.Second),
		ReadSize:         64 * 1024,
		MaxBatchBytes:    256 * 1024,
		MaxDatagramBatch: 64,
	}
}

// Validate 验证泵配置
func (c PumpConfig) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("pump: poll_interval must be positive")
	}
	if c.ReadSize <= 0 {
		return errors.New("pump: read_size must be positive")
	}
	if c.MaxBatchBytes < c.ReadSize {
		return errors.New("pump: max_batch_bytes must be >= read_size")
	}
	if c.MaxDatagramBatch <= 0 {
		return errors.New("pump: max_datagram_batch must be positive")
	}
	if c.BytesPerSecond < 0 {
		return errors.New("pump: bytes_per_second must not be negative")
	}
	return nil
}
