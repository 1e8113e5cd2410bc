package netpipe

import (
	"github.com/dep2p/go-netpipe/config"
)

// ════════════════════════════════════════════════════════════════════════════
//                              预设配置常量
// ════════════════════════════════════════════════════════════════════════════

// Preset 预设名称
type Preset string

const (
	// PresetDefault 默认阈值与轮询参数
	PresetDefault Preset = "default"

	// PresetLowLatency 小阈值、短轮询，适合交互式协议
	PresetLowLatency Preset = "low-latency"

	// PresetBulk 大阈值、大批量，适合大块数据传输
	PresetBulk Preset = "bulk"
)

// Config 返回应用了该预设的新配置
//
// 示例：
//
//	cfg, err := netpipe.PresetBulk.Config()
func (p Preset) Config() (*config.Config, error) {
	cfg := config.NewConfig()
	if err := config.ApplyPreset(cfg, string(p)); err != nil {
		return nil, err
	}
	return cfg, nil
}
