package tcp

import "errors"

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("transport closed")

	// ErrInvalidAddress 地址格式无效
	ErrInvalidAddress = errors.New("invalid tcp address")

	// ErrNotTCP 底层连接不是 TCP
	ErrNotTCP = errors.New("not a tcp connection")
)
