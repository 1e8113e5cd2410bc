package netpipe

import "errors"

// 公共错误定义
var (
	// ErrRuntimeClosed 运行时已关闭
	ErrRuntimeClosed = errors.New("runtime closed")

	// ErrNotListener 协议栈不是监听端
	ErrNotListener = errors.New("stack is not listening")
)
