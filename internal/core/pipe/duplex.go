package pipe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/buffer"
	"github.com/dep2p/go-netpipe/internal/util/logger"
	"github.com/dep2p/go-netpipe/pkg/types"
)

var log = logger.Logger("pipe")

// Config 管道构造参数
type Config struct {
	// StreamThreshold 流缓冲区阈值（字节）
	StreamThreshold int64
	// DatagramThreshold 数据报缓冲区阈值（个）
	DatagramThreshold int64
	// AllowAttachDisconnected 允许附着已断开且无剩余数据的端点
	AllowAttachDisconnected bool
	// ReceiveTimeout/SendTimeout 附着时默认装配的空闲超时，0 不启用
	ReceiveTimeout time.Duration
	SendTimeout    time.Duration
	// Clock 空闲检测器使用的时钟，nil 使用系统时钟
	Clock clock.Clock
}

// DefaultConfig 返回默认构造参数
func DefaultConfig() Config {
	return FromConfig(config.DefaultPipeConfig())
}

// FromConfig 从配置文件的管道段生成构造参数
func FromConfig(c config.PipeConfig) Config {
	return Config{
		StreamThreshold:         c.StreamThreshold,
		DatagramThreshold:       c.DatagramThreshold,
		AllowAttachDisconnected: c.AllowAttachDisconnected,
		ReceiveTimeout:          c.ReceiveTimeout.Duration(),
		SendTimeout:             c.SendTimeout.Duration(),
	}
}

type disconnectEntry struct {
	id uint64
	fn func(err error)
}

// DuplexPipe 双工管道
type DuplexPipe struct {
	id  uuid.UUID
	cfg Config
	clk clock.Clock

	streamAB *buffer.StreamBuffer
	streamBA *buffer.StreamBuffer
	dgramAB  *buffer.DatagramBuffer
	dgramBA  *buffer.DatagramBuffer

	a, b Point

	exceptions *ExceptionQueue
	layers     *LayerHierarchy

	canceled atomic.Bool
	done     chan struct{}

	mu        sync.Mutex
	cause     error
	callbacks []disconnectEntry
	nextCB    uint64
}

// New 创建双工管道
func New(cfg Config) *DuplexPipe {
	def := config.DefaultPipeConfig()
	if cfg.StreamThreshold <= 0 {
		cfg.StreamThreshold = def.StreamThreshold
	}
	if cfg.DatagramThreshold <= 0 {
		cfg.DatagramThreshold = def.DatagramThreshold
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	p := &DuplexPipe{
		id:         uuid.New(),
		cfg:        cfg,
		clk:        clk,
		streamAB:   buffer.NewStreamBuffer(cfg.StreamThreshold),
		streamBA:   buffer.NewStreamBuffer(cfg.StreamThreshold),
		dgramAB:    buffer.NewDatagramBuffer(cfg.DatagramThreshold),
		dgramBA:    buffer.NewDatagramBuffer(cfg.DatagramThreshold),
		exceptions: NewExceptionQueue(),
		layers:     NewLayerHierarchy(),
		done:       make(chan struct{}),
	}
	p.a.init(p, types.SideA)
	p.b.init(p, types.SideB)

	log.Debug("创建双工管道", "id", p.id, "streamThreshold", cfg.StreamThreshold)
	return p
}

// NewPair 以给定阈值创建管道并返回两个端点
func NewPair(streamThreshold, datagramThreshold int64) (*Point, *Point) {
	p := New(Config{StreamThreshold: streamThreshold, DatagramThreshold: datagramThreshold})
	return p.A(), p.B()
}

// ID 返回管道标识
func (p *DuplexPipe) ID() uuid.UUID { return p.id }

// Config 返回构造参数
func (p *DuplexPipe) Config() Config { return p.cfg }

// Clock 返回管道时钟
func (p *DuplexPipe) Clock() clock.Clock { return p.clk }

// A 返回 A 端
func (p *DuplexPipe) A() *Point { return &p.a }

// B 返回 B 端
func (p *DuplexPipe) B() *Point { return &p.b }

// Point 返回指定侧的端点
func (p *DuplexPipe) Point(side types.Side) *Point {
	if side == types.SideB {
		return &p.b
	}
	return &p.a
}

// Exceptions 返回共享异常队列
func (p *DuplexPipe) Exceptions() *ExceptionQueue { return p.exceptions }

// Layers 返回层信息层级
func (p *DuplexPipe) Layers() *LayerHierarchy { return p.layers }

// ============================================================================
//                              取消
// ============================================================================

// Cancel 取消管道
//
// 幂等。断开全部四个缓冲区，依次调用断开回调（panic 被记录并吞掉），关闭 Done()。
// err 非 nil 时同时记入异常队列。
func (p *DuplexPipe) Cancel(err error) {
	if !p.canceled.CompareAndSwap(false, true) {
		return
	}

	var fault *types.Fault
	if err == nil {
		fault = types.NewFault(types.FaultDisconnected, "pipe", nil)
	} else {
		fault = types.AsFault(err, types.FaultDisconnected, "pipe")
		p.exceptions.Raise(fault)
	}

	p.streamAB.Disconnect(fault)
	p.streamBA.Disconnect(fault)
	p.dgramAB.Disconnect(fault)
	p.dgramBA.Disconnect(fault)

	p.mu.Lock()
	p.cause = fault
	callbacks := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()

	close(p.done)

	var errs error
	for _, cb := range callbacks {
		errs = multierr.Append(errs, runCallback(cb.fn, fault))
	}
	if errs != nil {
		log.Warn("断开回调执行失败", "id", p.id, "err", errs)
	}
	log.Debug("管道已取消", "id", p.id, "reason", fault)
}

func runCallback(fn func(error), cause error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("disconnect callback panic: %v", r)
		}
	}()
	fn(cause)
	return nil
}

// Close 以正常断开取消管道
func (p *DuplexPipe) Close() error {
	p.Cancel(nil)
	return nil
}

// IsCanceled 是否已取消
func (p *DuplexPipe) IsCanceled() bool {
	return p.canceled.Load()
}

// Done 取消时关闭
func (p *DuplexPipe) Done() <-chan struct{} {
	return p.done
}

// Err 返回取消原因；未取消时为 nil
func (p *DuplexPipe) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cause
}

// OnDisconnect 注册断开回调，返回注销函数
//
// 管道已取消时立即以取消原因调用 fn。
func (p *DuplexPipe) OnDisconnect(fn func(err error)) (remove func()) {
	p.mu.Lock()
	if p.cause != nil {
		cause := p.cause
		p.mu.Unlock()
		if err := runCallback(fn, cause); err != nil {
			log.Warn("断开回调执行失败", "id", p.id, "err", err)
		}
		return func() {}
	}
	p.nextCB++
	id := p.nextCB
	p.callbacks = append(p.callbacks, disconnectEntry{id: id, fn: fn})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, cb := range p.callbacks {
			if cb.id == id {
				p.callbacks = append(p.callbacks[:i:i], p.callbacks[i+1:]...)
				return
			}
		}
	}
}
