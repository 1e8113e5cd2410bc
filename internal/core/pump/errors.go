package pump

import "errors"

var (
	// ErrAlreadyStarted 适配器只能启动一次
	ErrAlreadyStarted = errors.New("pump: already started")

	// errEndOfStream 外部资源读到 EOF
	errEndOfStream = errors.New("pump: end of stream")

	// errDrained 管道侧断开且已排空
	errDrained = errors.New("pump: pipe drained")
)
