package types

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"strconv"
)

// ============================================================================
//                              LayerKind - 协议层类别
// ============================================================================

// LayerKind 协议层类别
//
// 层类别是封闭集合，查询方通过 Values(kind) 或 LayerVisitor 获取层信息，
// 不需要知道具体安装了哪些层。
type LayerKind int

const (
	// LayerIP IP 端点信息
	LayerIP LayerKind = iota + 1
	// LayerTCP TCP 端点信息
	LayerTCP
	// LayerTLS TLS 会话信息
	LayerTLS
)

// String 返回层类别的字符串表示
func (k LayerKind) String() string {
	switch k {
	case LayerIP:
		return "ip"
	case LayerTCP:
		return "tcp"
	case LayerTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// LayerInfo 已安装协议层的内省信息
type LayerInfo interface {
	// Kind 返回层的具体类别
	Kind() LayerKind

	// Provides 返回该层是否能回答 kind 类别的查询
	Provides(kind LayerKind) bool

	// Accept 访问者分派
	Accept(v LayerVisitor)

	layerInfo()
}

// LayerVisitor 层信息访问者
type LayerVisitor interface {
	VisitIP(info *IPInfo)
	VisitTCP(info *TCPInfo)
	VisitTLS(info *TLSInfo)
}

// ============================================================================
//                              IPInfo
// ============================================================================

// IPInfo IP 端点信息
type IPInfo struct {
	LocalIP  net.IP
	RemoteIP net.IP
}

var _ LayerInfo = (*IPInfo)(nil)

// Kind 实现 LayerInfo
func (i *IPInfo) Kind() LayerKind { return LayerIP }

// Provides 实现 LayerInfo
func (i *IPInfo) Provides(kind LayerKind) bool { return kind == LayerIP }

// Accept 实现 LayerInfo
func (i *IPInfo) Accept(v LayerVisitor) { v.VisitIP(i) }

func (i *IPInfo) layerInfo() {}

// IsIPv6 远端是否为 IPv6 地址
func (i *IPInfo) IsIPv6() bool {
	return i.RemoteIP != nil && i.RemoteIP.To4() == nil
}

// ============================================================================
//                              TCPInfo
// ============================================================================

// TCPInfo TCP 端点信息
//
// TCPInfo 同时提供 IP 层信息。
type TCPInfo struct {
	IPInfo
	LocalPort  int
	RemotePort int
	Direction  Direction
}

var _ LayerInfo = (*TCPInfo)(nil)

// NewTCPInfo 从本地/远端地址创建 TCP 信息
func NewTCPInfo(local, remote net.Addr, dir Direction) *TCPInfo {
	info := &TCPInfo{Direction: dir}
	if a, ok := local.(*net.TCPAddr); ok {
		info.LocalIP, info.LocalPort = a.IP, a.Port
	}
	if a, ok := remote.(*net.TCPAddr); ok {
		info.RemoteIP, info.RemotePort = a.IP, a.Port
	}
	return info
}

// Kind 实现 LayerInfo
func (i *TCPInfo) Kind() LayerKind { return LayerTCP }

// Provides 实现 LayerInfo
func (i *TCPInfo) Provides(kind LayerKind) bool { return kind == LayerTCP || kind == LayerIP }

// Accept 实现 LayerInfo
func (i *TCPInfo) Accept(v LayerVisitor) { v.VisitTCP(i) }

func (i *TCPInfo) layerInfo() {}

// LocalAddr 返回本地地址
func (i *TCPInfo) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: i.LocalIP, Port: i.LocalPort}
}

// RemoteAddr 返回远端地址
func (i *TCPInfo) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: i.RemoteIP, Port: i.RemotePort}
}

// String 返回 "local -> remote" 形式
func (i *TCPInfo) String() string {
	return net.JoinHostPort(i.LocalIP.String(), strconv.Itoa(i.LocalPort)) +
		" -> " + net.JoinHostPort(i.RemoteIP.String(), strconv.Itoa(i.RemotePort))
}

// ============================================================================
//                              TLSInfo
// ============================================================================

// TLSInfo TLS 会话信息
type TLSInfo struct {
	Version            uint16
	CipherSuite        uint16
	ServerName         string
	NegotiatedProtocol string
	IsServer           bool
	DidResume          bool
	LocalCertificate   *x509.Certificate
	PeerCertificates   []*x509.Certificate
}

var _ LayerInfo = (*TLSInfo)(nil)

// NewTLSInfo 从连接状态创建 TLS 信息
func NewTLSInfo(state tls.ConnectionState, local *tls.Certificate, isServer bool) *TLSInfo {
	info := &TLSInfo{
		Version:            state.Version,
		CipherSuite:        state.CipherSuite,
		ServerName:         state.ServerName,
		NegotiatedProtocol: state.NegotiatedProtocol,
		IsServer:           isServer,
		DidResume:          state.DidResume,
		PeerCertificates:   state.PeerCertificates,
	}
	if local != nil {
		info.LocalCertificate = local.Leaf
	}
	return info
}

// Kind 实现 LayerInfo
func (i *TLSInfo) Kind() LayerKind { return LayerTLS }

// Provides 实现 LayerInfo
func (i *TLSInfo) Provides(kind LayerKind) bool { return kind == LayerTLS }

// Accept 实现 LayerInfo
func (i *TLSInfo) Accept(v LayerVisitor) { v.VisitTLS(i) }

func (i *TLSInfo) layerInfo() {}

// ProtocolName 返回协议版本名称，如 "TLS 1.3"
func (i *TLSInfo) ProtocolName() string {
	return tls.VersionName(i.Version)
}

// CipherName 返回加密套件名称
func (i *TLSInfo) CipherName() string {
	return tls.CipherSuiteName(i.CipherSuite)
}
