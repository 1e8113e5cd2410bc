package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/util/logger"
	"github.com/dep2p/go-netpipe/pkg/interfaces"
)

var log = logger.Logger("security/tls")

// defaultHandshakeTimeout 配置未给出超时时使用
const defaultHandshakeTimeout = 10 * time.Second

// ============================================================================
//                              Handshaker 实现
// ============================================================================

// Handshaker TLS 握手器
type Handshaker struct {
	builder *ConfigBuilder
	timeout time.Duration

	serverConfig *tls.Config
}

// 确保实现接口
var _ interfaces.Handshaker = (*Handshaker)(nil)

// Option 握手器选项
type Option func(*ConfigBuilder)

// WithCertificate 使用给定证书
func WithCertificate(cert *tls.Certificate) Option {
	return func(b *ConfigBuilder) { b.WithCertificate(cert) }
}

// WithRootCAs 使用给定证书池校验对端
func WithRootCAs(pool *x509.CertPool) Option {
	return func(b *ConfigBuilder) { b.WithRootCAs(pool) }
}

// NewHandshaker 创建握手器
func NewHandshaker(cfg config.TLSConfig, opts ...Option) (*Handshaker, error) {
	builder, err := NewConfigBuilder(cfg)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(builder)
	}

	serverConfig, err := builder.BuildServerConfig()
	if err != nil {
		return nil, fmt.Errorf("生成服务端 TLS 配置失败: %w", err)
	}

	timeout := cfg.HandshakeTimeout.Duration()
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	log.Debug("TLS 握手器已创建",
		"minVersion", tls.VersionName(serverConfig.MinVersion),
		"requireClientCert", cfg.RequireClientCert,
		"insecureSkipVerify", cfg.InsecureSkipVerify)

	return &Handshaker{
		builder:      builder,
		timeout:      timeout,
		serverConfig: serverConfig,
	}, nil
}

// Certificate 返回本端证书
func (h *Handshaker) Certificate() *tls.Certificate {
	return h.builder.Certificate()
}

// Client 以客户端身份握手
func (h *Handshaker) Client(ctx context.Context, conn net.Conn, serverName string) (interfaces.SecureConn, error) {
	clientConfig, err := h.builder.BuildClientConfig(serverName)
	if err != nil {
		return nil, fmt.Errorf("创建客户端 TLS 配置失败: %w", err)
	}
	return h.handshake(ctx, tls.Client(conn, clientConfig), false)
}

// Server 以服务端身份握手
func (h *Handshaker) Server(ctx context.Context, conn net.Conn) (interfaces.SecureConn, error) {
	return h.handshake(ctx, tls.Server(conn, h.serverConfig), true)
}

// handshake 在截止时间内完成握手；失败时不关闭底层连接，由调用方回滚
//
// ctx 取消时把底层连接的截止时间设为过去，打断阻塞的读写；底层连接保持打开。
func (h *Handshaker) handshake(ctx context.Context, conn *tls.Conn, isServer bool) (interfaces.SecureConn, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(h.timeout)
	}
	_ = conn.SetDeadline(deadline)

	aborted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
		close(aborted)
	})
	err := conn.Handshake()
	if !stop() {
		<-aborted
	}
	_ = conn.SetDeadline(time.Time{})

	if cerr := ctx.Err(); cerr != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	sc := newSecureConn(conn, h.builder.Certificate(), isServer)
	log.Debug("TLS 握手成功",
		"server", isServer,
		"version", sc.info.ProtocolName(),
		"cipher", sc.info.CipherName(),
		"remote", conn.RemoteAddr())
	return sc, nil
}
