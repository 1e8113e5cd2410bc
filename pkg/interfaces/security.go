package interfaces

import (
	"context"
	"net"

	"github.com/dep2p/go-netpipe/pkg/types"
)

// Handshaker TLS 握手能力
//
// TLS 协议栈只依赖此接口完成握手，握手在管道流之上进行。
type Handshaker interface {
	// Client 以客户端身份握手，serverName 用于 SNI 与证书校验
	Client(ctx context.Context, conn net.Conn, serverName string) (SecureConn, error)

	// Server 以服务端身份握手
	Server(ctx context.Context, conn net.Conn) (SecureConn, error)
}

// SecureConn 握手完成的安全连接
type SecureConn interface {
	net.Conn

	// Info 返回会话信息（协议版本、加密套件、证书）
	Info() *types.TLSInfo
}
