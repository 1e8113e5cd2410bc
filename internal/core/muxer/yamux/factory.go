package yamux

import (
	"fmt"
	"net"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/pkg/interfaces"
)

// Factory 在连接上建立 yamux 会话
type Factory struct {
	cfg      config.MuxConfig
	yamuxCfg *yamux.Config
}

// 确保实现接口
var _ interfaces.Muxer = (*Factory)(nil)

// NewFactory 创建 yamux 工厂
func NewFactory(cfg config.MuxConfig) *Factory {
	return &Factory{
		cfg:      cfg,
		yamuxCfg: ConfigToYamux(cfg),
	}
}

// NewConn 在 conn 上建立会话，isServer 决定流 ID 的奇偶
func (f *Factory) NewConn(conn net.Conn, isServer bool) (interfaces.MuxedConn, error) {
	if conn == nil {
		return nil, ErrNilConn
	}

	var session *yamux.Session
	var err error
	if isServer {
		session, err = yamux.Server(conn, f.yamuxCfg)
	} else {
		session, err = yamux.Client(conn, f.yamuxCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("创建 yamux session 失败: %w", err)
	}
	return NewMuxer(session, isServer), nil
}

// Protocol 返回协议名称
func (f *Factory) Protocol() string {
	return "yamux"
}

// Config 返回配置
func (f *Factory) Config() config.MuxConfig {
	return f.cfg
}
