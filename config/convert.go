package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "pipe": {"stream_threshold": 65536},
//	  "pump": {"poll_interval": "500ms"},
//	  "tls":  {"min_version": "1.3"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return FromJSON(data)
}

// ToJSON 将配置序列化为带缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// SaveFile 将配置写入 JSON 文件
func (c *Config) SaveFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "default": 默认值
//   - "low-latency": 小阈值、短轮询，适合交互式协议
//   - "bulk": 大阈值、大批量，适合大块数据传输
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch presetName {
	case "", "default":
		return nil
	case "low-latency":
		cfg.Pipe.StreamThreshold = 64 * 1024
		cfg.Pipe.DatagramThreshold = 256
		cfg.Pump.PollInterval = Duration(100 * time.Millisecond)
		cfg.Pump.ReadSize = 16 * 1024
		cfg.Pump.MaxBatchBytes = 64 * 1024
		cfg.TCP.NoDelay = true
		return nil
	case "bulk":
		cfg.Pipe.StreamThreshold = 8 * 1024 * 1024
		cfg.Pipe.DatagramThreshold = 65536
		cfg.Pump.ReadSize = 256 * 1024
		cfg.Pump.MaxBatchBytes = 4 * 1024 * 1024
		cfg.Pump.MaxDatagramBatch = 1024
		cfg.TCP.NoDelay = false
		return nil
	default:
		return fmt.Errorf("unknown preset: %s", presetName)
	}
}
