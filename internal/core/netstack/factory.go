package netstack

import (
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/pkg/interfaces"
)

// Factory 按统一参数构造协议栈，并跟踪未结束的协议栈以便统一关闭
type Factory struct {
	opts       Options
	transport  interfaces.Transport
	handshaker interfaces.Handshaker
	muxer      interfaces.Muxer

	mu     sync.Mutex
	live   map[io.Closer]struct{}
	closed bool
}

// NewFactory 创建工厂；handshaker 与 muxer 可以为 nil
func NewFactory(opts Options, tr interfaces.Transport, hs interfaces.Handshaker, m interfaces.Muxer) *Factory {
	return &Factory{
		opts:       opts,
		transport:  tr,
		handshaker: hs,
		muxer:      m,
		live:       make(map[io.Closer]struct{}),
	}
}

// Options 返回构造参数
func (f *Factory) Options() Options { return f.opts }

// track 登记协议栈，done 关闭后自动移除
func (f *Factory) track(c io.Closer, done <-chan struct{}) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		_ = c.Close()
		return
	}
	f.live[c] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-done
		f.mu.Lock()
		delete(f.live, c)
		f.mu.Unlock()
	}()
}

// NewTCPStub 创建底层协议栈
func (f *Factory) NewTCPStub() *TCPStub {
	s := NewTCPStub(f.transport, f.opts)
	f.track(s, s.Done())
	return s
}

// NewTLSStack 在 lower 之上创建 TLS 中间层
func (f *Factory) NewTLSStack(lower *pipe.Point) (*TLSStack, error) {
	s, err := NewTLSStack(lower, f.handshaker, f.opts)
	if err != nil {
		return nil, err
	}
	f.track(s, s.Done())
	return s, nil
}

// NewMuxStack 在 lower 之上创建多路复用层
func (f *Factory) NewMuxStack(lower *pipe.Point) (*MuxStack, error) {
	s, err := NewMuxStack(lower, f.muxer, f.opts)
	if err != nil {
		return nil, err
	}
	f.track(s, s.Done())
	return s, nil
}

// NewAppStub 在 lower 之上创建顶层
func (f *Factory) NewAppStub(lower *pipe.Point) (*AppStub, error) {
	return NewAppStub(lower)
}

// Live 返回未结束的协议栈数量
func (f *Factory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// Close 关闭全部未结束的协议栈，之后创建的协议栈立即关闭
func (f *Factory) Close() error {
	f.mu.Lock()
	f.closed = true
	live := make([]io.Closer, 0, len(f.live))
	for c := range f.live {
		live = append(live, c)
	}
	f.mu.Unlock()

	var err error
	for _, c := range live {
		err = multierr.Append(err, c.Close())
	}
	return err
}
