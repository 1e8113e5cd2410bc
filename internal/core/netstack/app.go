package netstack

import (
	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// AppStub 顶层，把下层端点的流交给应用
type AppStub struct {
	*Layer
}

// NewAppStub 附着 lower 并创建顶层
func NewAppStub(lower *pipe.Point) (*AppStub, error) {
	s := &AppStub{Layer: newLayer("app", DefaultOptions(), false)}
	if err := s.attachLower(lower, types.DirUnknown); err != nil {
		return nil, err
	}
	s.transition(types.StateUnattached, types.StateConnected)
	return s, nil
}

// Stream 返回应用读写用的流
func (s *AppStub) Stream() *pipe.Stream {
	return s.lower.Stream()
}

// Close 关闭流并取消下层管道
func (s *AppStub) Close() error {
	s.state.Store(int32(types.StateClosed))
	return s.lower.Stream().Close()
}
