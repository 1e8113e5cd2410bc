package tls

import (
	"crypto/tls"

	"github.com/dep2p/go-netpipe/pkg/interfaces"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// 确保实现了接口
var _ interfaces.SecureConn = (*secureConn)(nil)

// secureConn 握手完成的 TLS 连接
type secureConn struct {
	*tls.Conn

	info *types.TLSInfo
}

func newSecureConn(conn *tls.Conn, local *tls.Certificate, isServer bool) *secureConn {
	return &secureConn{
		Conn: conn,
		info: types.NewTLSInfo(conn.ConnectionState(), local, isServer),
	}
}

// Info 返回会话信息
func (c *secureConn) Info() *types.TLSInfo {
	return c.info
}
