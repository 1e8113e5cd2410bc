package types

import "net"

// Datagram 数据报
//
// Addr 对入站数据报是来源地址，对出站数据报是目标地址；为 nil 时使用连接默认对端。
type Datagram struct {
	Data []byte
	Addr net.Addr
}

// Len 返回数据长度
func (d Datagram) Len() int {
	return len(d.Data)
}
