package tcp

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

// ============================================================================
//                              Address 实现
// ============================================================================

// Address TCP 地址
type Address struct {
	network string // "tcp4", "tcp6", "tcp"
	host    string // IP 地址或域名
	port    int
}

// NewAddress 创建 TCP 地址
func NewAddress(network, host string, port int) *Address {
	return &Address{
		network: network,
		host:    host,
		port:    port,
	}
}

// NewAddressFromNetAddr 从 net.Addr 创建地址
func NewAddressFromNetAddr(addr net.Addr) (*Address, error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrInvalidAddress, addr)
	}

	network := "tcp"
	if tcpAddr.IP.To4() != nil {
		network = "tcp4"
	} else if tcpAddr.IP.To16() != nil {
		network = "tcp6"
	}

	return &Address{
		network: network,
		host:    tcpAddr.IP.String(),
		port:    tcpAddr.Port,
	}, nil
}

var multiaddrPattern = regexp.MustCompile(`^/(ip4|ip6|dns4|dns6)/([^/]+)/tcp/(\d+)$`)

// ParseAddress 解析地址字符串
//
// 接受 host:port 与 /ip4|ip6|dns4|dns6/<host>/tcp/<port> 两种形式。
func ParseAddress(addr string) (*Address, error) {
	if m := multiaddrPattern.FindStringSubmatch(addr); m != nil {
		port, err := parsePort(m[3])
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, addr)
		}
		network := "tcp4"
		if m[1] == "ip6" || m[1] == "dns6" {
			network = "tcp6"
		}
		return &Address{network: network, host: m[2], port: port}, nil
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	port, err := parsePort(portStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, addr)
	}
	network := "tcp"
	if ip := net.ParseIP(host); ip != nil {
		network = "tcp6"
		if ip.To4() != nil {
			network = "tcp4"
		}
	}
	return &Address{network: network, host: host, port: port}, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 0 || port > 65535 {
		return 0, ErrInvalidAddress
	}
	return port, nil
}

// MustParseAddress 解析地址，失败则 panic
//
// 只用于初始化时已知不会失败的场景或测试。
func MustParseAddress(addr string) *Address {
	a, err := ParseAddress(addr)
	if err != nil {
		panic(fmt.Sprintf("解析 TCP 地址失败: %s, 错误: %v", addr, err))
	}
	return a
}

// Network 返回网络类型
func (a *Address) Network() string {
	return a.network
}

// String 返回 host:port 形式
func (a *Address) String() string {
	return a.NetDialString()
}

// Multiaddr 返回 /ip4/../tcp/.. 形式
func (a *Address) Multiaddr() string {
	proto := "ip4"
	if ip := net.ParseIP(a.host); ip != nil {
		if ip.To4() == nil {
			proto = "ip6"
		}
	} else if a.network == "tcp6" {
		proto = "dns6"
	} else {
		proto = "dns4"
	}
	return fmt.Sprintf("/%s/%s/tcp/%d", proto, a.host, a.port)
}

// Host 返回主机地址
func (a *Address) Host() string {
	return a.host
}

// Port 返回端口号
func (a *Address) Port() int {
	return a.port
}

// IsLoopback 检查是否为回环地址
func (a *Address) IsLoopback() bool {
	ip := net.ParseIP(a.host)
	if ip == nil {
		return a.host == "localhost"
	}
	return ip.IsLoopback()
}

// NetDialString 返回 net.Dial 使用的地址字符串
func (a *Address) NetDialString() string {
	return net.JoinHostPort(a.host, strconv.Itoa(a.port))
}
