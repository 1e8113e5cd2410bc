package config

import (
	"errors"
	"time"
)

// TLSConfig TLS 中间层配置
type TLSConfig struct {
	// HandshakeTimeout 握手超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// MinVersion 最低版本："1.2" 或 "1.3"
	MinVersion string `json:"min_version"`

	// CertFile / KeyFile 证书文件；为空时生成自签名证书
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`

	// CAFile 用于校验对端证书的 CA 文件
	CAFile string `json:"ca_file,omitempty"`

	// InsecureSkipVerify 客户端是否跳过证书校验
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty"`

	// RequireClientCert 服务端是否要求客户端证书
	RequireClientCert bool `json:"require_client_cert,omitempty"`

	// NextProtos ALPN 协议列表
	NextProtos []string `json:"next_protos,omitempty"`
}

// DefaultTLSConfig 返回默认 TLS 配置
func DefaultTLSConfig() TLSConfig {
	return TLSConfig{
		HandshakeTimeout: Duration(10 * time.Second),
		MinVersion:       "1.2",
	}
}

// Validate 验证 TLS 配置
func (c TLSConfig) Validate() error {
	if c.HandshakeTimeout <= 0 {
		return errors.New("tls: handshake_timeout must be positive")
	}
	switch c.MinVersion {
	case "", "1.2", "1.3":
	default:
		return errors.New("tls: min_version must be 1.2 or 1.3")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("tls: cert_file and key_file must be set together")
	}
	return nil
}
