package netpipe

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-netpipe/config"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 基础配置：显式配置优先于配置文件
	config     *config.Config
	configFile string

	// 预设
	preset Preset

	// 覆盖项，按注册顺序应用在预设之后
	overrides []func(*config.Config)

	// 用户自定义 Fx 选项
	fxOptions []fx.Option

	// 启动与停止超时
	startTimeout time.Duration
	stopTimeout  time.Duration
}

const (
	defaultStartTimeout = 15 * time.Second
	defaultStopTimeout  = 10 * time.Second
)

// newOptions 创建默认选项
func newOptions() *options {
	return &options{
		startTimeout: defaultStartTimeout,
		stopTimeout:  defaultStopTimeout,
	}
}

// toConfig 合成最终配置
//
// 顺序：基础配置 → 预设 → 覆盖项 → 校验与修复。
func (o *options) toConfig() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case o.config != nil:
		c := *o.config
		cfg = &c
	case o.configFile != "":
		c, err := config.LoadFile(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	default:
		cfg = config.NewConfig()
	}

	if o.preset != "" {
		if err := config.ApplyPreset(cfg, string(o.preset)); err != nil {
			return nil, err
		}
	}
	for _, fn := range o.overrides {
		fn(cfg)
	}
	return config.ValidateAndFix(cfg)
}

func (o *options) override(fn func(*config.Config)) {
	o.overrides = append(o.overrides, fn)
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置来源
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用给定配置作为基础；调用方的配置不会被修改
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载基础配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		if path == "" {
			return errors.New("config file path is empty")
		}
		o.configFile = path
		return nil
	}
}

// WithPreset 应用预设
func WithPreset(p Preset) Option {
	return func(o *options) error {
		switch p {
		case PresetDefault, PresetLowLatency, PresetBulk:
		default:
			return fmt.Errorf("unknown preset: %s", p)
		}
		o.preset = p
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              管道与泵
// ════════════════════════════════════════════════════════════════════════════

// WithStreamThreshold 设置字节流缓冲区阈值
func WithStreamThreshold(n int64) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("stream threshold must be positive: %d", n)
		}
		o.override(func(c *config.Config) { c.Pipe.StreamThreshold = n })
		return nil
	}
}

// WithIdleTimeouts 设置默认的接收与发送空闲超时；0 表示禁用
func WithIdleTimeouts(receive, send time.Duration) Option {
	return func(o *options) error {
		if receive < 0 || send < 0 {
			return errors.New("idle timeouts must not be negative")
		}
		o.override(func(c *config.Config) {
			c.Pipe.ReceiveTimeout = config.Duration(receive)
			c.Pipe.SendTimeout = config.Duration(send)
		})
		return nil
	}
}

// WithPollInterval 设置泵适配器轮询间隔
func WithPollInterval(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive: %s", d)
		}
		o.override(func(c *config.Config) { c.Pump.PollInterval = config.Duration(d) })
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              TLS
// ════════════════════════════════════════════════════════════════════════════

// WithCertificate 使用证书文件；未设置时生成自签名证书
func WithCertificate(certFile, keyFile string) Option {
	return func(o *options) error {
		if certFile == "" || keyFile == "" {
			return errors.New("cert and key files must both be set")
		}
		o.override(func(c *config.Config) {
			c.TLS.CertFile = certFile
			c.TLS.KeyFile = keyFile
		})
		return nil
	}
}

// WithInsecureSkipVerify 客户端跳过证书校验，仅用于测试与自签名部署
func WithInsecureSkipVerify() Option {
	return func(o *options) error {
		o.override(func(c *config.Config) { c.TLS.InsecureSkipVerify = true })
		return nil
	}
}

// WithHandshakeTimeout 设置 TLS 握手超时
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("handshake timeout must be positive: %s", d)
		}
		o.override(func(c *config.Config) { c.TLS.HandshakeTimeout = config.Duration(d) })
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              运行时
// ════════════════════════════════════════════════════════════════════════════

// WithStartTimeout 设置启动超时
func WithStartTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("start timeout must be positive: %s", d)
		}
		o.startTimeout = d
		return nil
	}
}

// WithFxOption 追加用户自定义 Fx 选项
//
// 可用于注入替代实现，或通过 fx.Populate 取出内部组件。
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
