package netpipe

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/bandwidth"
	"github.com/dep2p/go-netpipe/internal/core/netstack"
	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/internal/protocol/vault"

	tlsimpl "github.com/dep2p/go-netpipe/internal/core/security/tls"
)

// Runtime 组装好的运行时
//
// 持有 Fx 应用与协议栈工厂。所有通过 Runtime 创建的协议栈在 Close 时一并关闭。
type Runtime struct {
	cfg *config.Config
	app *fx.App

	// 由 Fx 注入
	factory   *netstack.Factory
	tls       *tlsimpl.Handshaker
	bandwidth *bandwidth.Counter

	stopTimeout time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New 创建并启动运行时
//
// 示例：
//
//	rt, err := netpipe.New(netpipe.WithPreset(netpipe.PresetLowLatency))
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
func New(opts ...Option) (*Runtime, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg, err := o.toConfig()
	if err != nil {
		return nil, fmt.Errorf("build config: %w", err)
	}

	rt := &Runtime{cfg: cfg, stopTimeout: o.stopTimeout}
	rt.app, err = buildFxApp(cfg, rt, o.fxOptions)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.startTimeout)
	defer cancel()
	if err := rt.app.Start(ctx); err != nil {
		log.Error("运行时启动失败", "error", err)
		return nil, fmt.Errorf("start fx app: %w", err)
	}
	log.Info("运行时已启动", "version", Version)
	return rt, nil
}

// Config 返回生效配置
func (r *Runtime) Config() *config.Config { return r.cfg }

// Factory 返回协议栈工厂
func (r *Runtime) Factory() *netstack.Factory { return r.factory }

// Certificate 返回本端 TLS 证书
func (r *Runtime) Certificate() *tls.Certificate {
	if r.tls == nil {
		return nil
	}
	return r.tls.Certificate()
}

// Bandwidth 返回流量计数器；未启用统计时为 nil
func (r *Runtime) Bandwidth() *bandwidth.Counter { return r.bandwidth }

// ════════════════════════════════════════════════════════════════════════════
//                              协议栈构造
// ════════════════════════════════════════════════════════════════════════════

// Dial 建立 TCP 连接，返回底层协议栈
func (r *Runtime) Dial(ctx context.Context, addr string) (*netstack.TCPStub, error) {
	if r.closed.Load() {
		return nil, ErrRuntimeClosed
	}
	s := r.factory.NewTCPStub()
	if err := s.Connect(ctx, addr, 0); err != nil {
		return nil, err
	}
	return s, nil
}

// DialTLS 建立 TCP 连接并以客户端身份完成 TLS 握手
//
// 握手失败时关闭已建立的 TCP 连接。
func (r *Runtime) DialTLS(ctx context.Context, addr, serverName string) (*netstack.TLSStack, error) {
	bottom, err := r.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	s, err := r.factory.NewTLSStack(bottom.Upper())
	if err != nil {
		_ = bottom.Close()
		return nil, err
	}
	if err := s.StartAsClient(ctx, serverName); err != nil {
		_ = bottom.Close()
		return nil, err
	}
	return s, nil
}

// Listen 在 addr 上监听，返回监听端协议栈
func (r *Runtime) Listen(addr string) (*netstack.TCPStub, error) {
	if r.closed.Load() {
		return nil, ErrRuntimeClosed
	}
	s := r.factory.NewTCPStub()
	if err := s.Listen(addr); err != nil {
		return nil, err
	}
	return s, nil
}

// Accept 从监听端接受一个 TCP 连接
func (r *Runtime) Accept(ctx context.Context, l *netstack.TCPStub) (*netstack.TCPStub, error) {
	if l == nil {
		return nil, ErrNotListener
	}
	return l.Accept(ctx)
}

// AcceptTLS 接受一个连接并以服务端身份完成 TLS 握手
func (r *Runtime) AcceptTLS(ctx context.Context, l *netstack.TCPStub) (*netstack.TLSStack, error) {
	bottom, err := r.Accept(ctx, l)
	if err != nil {
		return nil, err
	}
	s, err := r.factory.NewTLSStack(bottom.Upper())
	if err != nil {
		_ = bottom.Close()
		return nil, err
	}
	if err := s.StartAsServer(ctx); err != nil {
		_ = bottom.Close()
		return nil, err
	}
	return s, nil
}

// Mux 在 lower 之上启动多路复用层
func (r *Runtime) Mux(lower *pipe.Point, isServer bool) (*netstack.MuxStack, error) {
	s, err := r.factory.NewMuxStack(lower)
	if err != nil {
		return nil, err
	}
	if err := s.Start(isServer); err != nil {
		return nil, err
	}
	return s, nil
}

// Attach 在 lower 之上创建顶层，供调用方直接读写
func (r *Runtime) Attach(lower *pipe.Point) (*netstack.AppStub, error) {
	return r.factory.NewAppStub(lower)
}

// ════════════════════════════════════════════════════════════════════════════
//                              帧协议
// ════════════════════════════════════════════════════════════════════════════

// VaultClient 在 lower 之上打开帧协议客户端并完成握手
func (r *Runtime) VaultClient(ctx context.Context, lower *pipe.Point) (*vault.Client, error) {
	app, err := r.Attach(lower)
	if err != nil {
		return nil, err
	}
	c := vault.NewClient(app.Stream(), r.cfg.Vault)
	if err := c.Handshake(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return c, nil
}

// ServeVault 在 lower 之上运行帧协议服务端，直到会话结束
//
// store 为 nil 时使用内存存储。
func (r *Runtime) ServeVault(ctx context.Context, lower *pipe.Point, store vault.Store) error {
	app, err := r.Attach(lower)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := vault.NewServer(app.Stream(), r.cfg.Vault, store)
	if err := srv.Handshake(ctx); err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Close 停止运行时，关闭全部未结束的协议栈
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		ctx, cancel := context.WithTimeout(context.Background(), r.stopTimeout)
		defer cancel()
		if err := r.app.Stop(ctx); err != nil {
			r.closeErr = fmt.Errorf("stop fx app: %w", err)
			log.Error("运行时停止失败", "error", err)
			return
		}
		log.Info("运行时已停止")
	})
	return r.closeErr
}
