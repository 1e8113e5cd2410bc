package tls

import "errors"

// TLS 相关错误
var (
	// ErrNoCertificate PEM 中没有证书
	ErrNoCertificate = errors.New("tls: no certificate provided")

	// ErrInvalidVersion 无法识别的最低版本
	ErrInvalidVersion = errors.New("tls: invalid min version")

	// ErrInvalidCA CA 文件中没有可用证书
	ErrInvalidCA = errors.New("tls: no usable certificate in CA file")

	// ErrHandshake 握手失败
	ErrHandshake = errors.New("tls: handshake failed")
)
