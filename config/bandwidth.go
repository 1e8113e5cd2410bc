package config

import (
	"errors"
	"time"
)

// BandwidthConfig 流量统计配置
//
// 统计泵适配器与外部资源之间搬运的字节数，按总量与协议层分类。
type BandwidthConfig struct {
	// Enabled 是否启用流量统计
	// 默认值: true
	Enabled bool `json:"enabled"`

	// PerLayer 是否按协议层（tcp/tls/mux）分别统计
	// 默认值: true
	PerLayer bool `json:"per_layer"`

	// ReportInterval 周期性输出统计日志的间隔，0 表示不输出
	// 默认值: 0
	ReportInterval Duration `json:"report_interval"`

	// TrimInterval 清理空闲条目的间隔，0 表示不清理
	// 默认值: 5m
	TrimInterval Duration `json:"trim_interval"`

	// IdleTimeout 空闲超过此时间的条目会被清理
	// 默认值: 30m
	IdleTimeout Duration `json:"idle_timeout"`
}

// DefaultBandwidthConfig 返回默认的流量统计配置
func DefaultBandwidthConfig() BandwidthConfig {
	return BandwidthConfig{
		Enabled:      true,
		PerLayer:     true,
		TrimInterval: Duration(5 * time.Minute),
		IdleTimeout:  Duration(30 * time.Minute),
	}
}

// Validate 验证流量统计配置
func (c BandwidthConfig) Validate() error {
	if c.ReportInterval < 0 || c.TrimInterval < 0 || c.IdleTimeout < 0 {
		return errors.New("bandwidth: intervals must not be negative")
	}
	if c.TrimInterval > 0 && c.IdleTimeout == 0 {
		return errors.New("bandwidth: idle_timeout is required when trim_interval is set")
	}
	return nil
}
