package security

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/util/logger"
	"github.com/dep2p/go-netpipe/pkg/interfaces"

	tlsimpl "github.com/dep2p/go-netpipe/internal/core/security/tls"
)

var log = logger.Logger("security")

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Handshaker TLS 握手器
	Handshaker interfaces.Handshaker

	// TLS 具体实现，供需要证书的调用方使用
	TLS *tlsimpl.Handshaker
}

// ProvideServices 提供模块服务
func ProvideServices(cfg *config.Config) (ModuleOutput, error) {
	tlsCfg := config.DefaultTLSConfig()
	if cfg != nil {
		tlsCfg = cfg.TLS
	}

	hs, err := tlsimpl.NewHandshaker(tlsCfg)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("创建 TLS 握手器失败: %w", err)
	}
	log.Info("TLS 握手器就绪",
		"minVersion", tlsCfg.MinVersion,
		"selfSigned", tlsCfg.CertFile == "")

	return ModuleOutput{Handshaker: hs, TLS: hs}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("security",
		fx.Provide(ProvideServices),
	)
}

// 模块元信息常量
const (
	Name        = "security"
	Description = "TLS 中间层握手"
)
