package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/dep2p/go-netpipe/config"
)

// ConfigBuilder 从 config.TLSConfig 构建 crypto/tls 配置
type ConfigBuilder struct {
	cfg     config.TLSConfig
	cert    *tls.Certificate
	rootCAs *x509.CertPool
}

// NewConfigBuilder 创建配置构建器
//
// 证书优先取 CertFile/KeyFile，未配置时生成自签名证书；
// 配置了 CAFile 时它同时作为客户端的 RootCAs 与服务端的 ClientCAs。
func NewConfigBuilder(cfg config.TLSConfig) (*ConfigBuilder, error) {
	b := &ConfigBuilder{cfg: cfg}

	var err error
	if cfg.CertFile != "" {
		b.cert, err = LoadCertificate(cfg.CertFile, cfg.KeyFile)
	} else {
		b.cert, err = GenerateSelfSigned()
	}
	if err != nil {
		return nil, err
	}

	if cfg.CAFile != "" {
		if b.rootCAs, err = LoadCertPool(cfg.CAFile); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// WithCertificate 替换本端证书
func (b *ConfigBuilder) WithCertificate(cert *tls.Certificate) *ConfigBuilder {
	b.cert = cert
	return b
}

// WithRootCAs 替换用于校验对端的证书池
func (b *ConfigBuilder) WithRootCAs(pool *x509.CertPool) *ConfigBuilder {
	b.rootCAs = pool
	return b
}

// Certificate 返回本端证书
func (b *ConfigBuilder) Certificate() *tls.Certificate {
	return b.cert
}

// BuildServerConfig 构建服务端配置
func (b *ConfigBuilder) BuildServerConfig() (*tls.Config, error) {
	minVersion, err := ParseVersion(b.cfg.MinVersion)
	if err != nil {
		return nil, err
	}

	c := &tls.Config{
		Certificates: []tls.Certificate{*b.cert},
		MinVersion:   minVersion,
		NextProtos:   b.cfg.NextProtos,
	}
	switch {
	case b.cfg.RequireClientCert && b.rootCAs != nil:
		c.ClientAuth = tls.RequireAndVerifyClientCert
		c.ClientCAs = b.rootCAs
	case b.cfg.RequireClientCert:
		c.ClientAuth = tls.RequireAnyClientCert
	default:
		c.ClientAuth = tls.NoClientCert
	}
	return c, nil
}

// BuildClientConfig 构建客户端配置
func (b *ConfigBuilder) BuildClientConfig(serverName string) (*tls.Config, error) {
	minVersion, err := ParseVersion(b.cfg.MinVersion)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates:       []tls.Certificate{*b.cert},
		MinVersion:         minVersion,
		NextProtos:         b.cfg.NextProtos,
		ServerName:         serverName,
		RootCAs:            b.rootCAs,
		InsecureSkipVerify: b.cfg.InsecureSkipVerify, //nolint:gosec // 由配置显式开启
	}, nil
}

// ParseVersion 将 "1.2"/"1.3" 转换为 crypto/tls 版本号，空串按 1.2 处理
func ParseVersion(v string) (uint16, error) {
	switch v {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
}
