package config

import "errors"

// ValidateAll 验证整个配置的有效性
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并尝试自动修复常见问题
//
// 可修复的问题：
//   - 阈值非正 -> 使用默认值
//   - 轮询间隔非正 -> 使用默认值
//   - 批量小于单次读取 -> 提升到单次读取大小
//   - 负的空闲超时 -> 禁用
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	defPipe := DefaultPipeConfig()
	if c.Pipe.StreamThreshold <= 0 {
		c.Pipe.StreamThreshold = defPipe.StreamThreshold
	}
	if c.Pipe.DatagramThreshold <= 0 {
		c.Pipe.DatagramThreshold = defPipe.DatagramThreshold
	}
	if c.Pipe.ReceiveTimeout < 0 {
		c.Pipe.ReceiveTimeout = 0
	}
	if c.Pipe.SendTimeout < 0 {
		c.Pipe.SendTimeout = 0
	}

	defPump := DefaultPumpConfig()
	if c.Pump.PollInterval <= 0 {
		c.Pump.PollInterval = defPump.PollInterval
	}
	if c.Pump.ReadSize <= 0 {
		c.Pump.ReadSize = defPump.ReadSize
	}
	if c.Pump.MaxBatchBytes < c.Pump.ReadSize {
		c.Pump.MaxBatchBytes = c.Pump.ReadSize
	}
	if c.Pump.MaxDatagramBatch <= 0 {
		c.Pump.MaxDatagramBatch = defPump.MaxDatagramBatch
	}

	if c.Bandwidth.TrimInterval > 0 && c.Bandwidth.IdleTimeout <= 0 {
		c.Bandwidth.IdleTimeout = DefaultBandwidthConfig().IdleTimeout
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
