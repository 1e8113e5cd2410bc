package vault

import "errors"

var (
	// ErrBadMagic 握手 magic 不符
	ErrBadMagic = errors.New("vault: bad magic number")

	// ErrBadVersion 对端版本无效
	ErrBadVersion = errors.New("vault: unsupported version")

	// ErrFrameTooLarge 帧负载超过上限
	ErrFrameTooLarge = errors.New("vault: frame too large")

	// ErrUnknownFrame 未知帧类型
	ErrUnknownFrame = errors.New("vault: unknown frame type")

	// ErrMalformedRecord 记录负载无法解码
	ErrMalformedRecord = errors.New("vault: malformed record")

	// ErrNotFound 键不存在
	ErrNotFound = errors.New("vault: key not found")

	// ErrNoHandshake 未完成握手
	ErrNoHandshake = errors.New("vault: handshake not completed")

	// ErrRemote 对端返回错误帧
	ErrRemote = errors.New("vault: remote error")
)
