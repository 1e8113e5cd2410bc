// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//   - 支持预设配置（default/low-latency/bulk）
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Pipe.StreamThreshold = 256 * 1024
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
package config

// Config 是 netpipe 的完整配置结构
//
// 配置按照功能模块组织：
//   - Pipe: 双工管道缓冲区阈值与附着选项
//   - Pump: 泵适配器轮询与批量参数
//   - TCP: TCP 底层协议栈
//   - TLS: TLS 中间层
//   - Mux: yamux 多路复用中间层
//   - Vault: 上层帧协议
//   - Bandwidth: 流量统计
type Config struct {
	// Pipe 管道配置
	Pipe PipeConfig `json:"pipe"`

	// Pump 泵适配器配置
	Pump PumpConfig `json:"pump"`

	// TCP TCP 配置
	TCP TCPConfig `json:"tcp"`

	// TLS TLS 配置
	TLS TLSConfig `json:"tls"`

	// Mux 多路复用配置
	Mux MuxConfig `json:"mux"`

	// Vault 帧协议配置
	Vault VaultConfig `json:"vault"`

	// Bandwidth 流量统计配置
	Bandwidth BandwidthConfig `json:"bandwidth"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Pipe:      DefaultPipeConfig(),
		Pump:      DefaultPumpConfig(),
		TCP:       DefaultTCPConfig(),
		TLS:       DefaultTLSConfig(),
		Mux:       DefaultMuxConfig(),
		Vault:     DefaultVaultConfig(),
		Bandwidth: DefaultBandwidthConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if err := c.Pipe.Validate(); err != nil {
		return err
	}
	if err := c.Pump.Validate(); err != nil {
		return err
	}
	if err := c.TCP.Validate(); err != nil {
		return err
	}
	if err := c.TLS.Validate(); err != nil {
		return err
	}
	if err := c.Mux.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	return c.Bandwidth.Validate()
}
