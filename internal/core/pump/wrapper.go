package pump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/internal/util/logger"
	"github.com/dep2p/go-netpipe/pkg/types"
)

var log = logger.Logger("pump")

// maxDatagramSize 单个入站数据报的最大长度
const maxDatagramSize = 64 * 1024

// loop 一个泵循环，ctx 结束或出错时返回
type loop func(ctx context.Context) error

// signaler 缓冲区的就绪信号
type signaler interface {
	IsReadyToWrite() bool
	Readable() <-chan struct{}
	Writable() <-chan struct{}
	Done() <-chan struct{}
}

// ============================================================================
//                              Wrapper 基类
// ============================================================================

// Wrapper 泵适配器基类
//
// 持有端点的附着句柄，在 errgroup 下运行各个循环；
// 任一循环返回即结束整个适配器。
type Wrapper struct {
	name    string
	point   *pipe.Point
	handle  *pipe.AttachHandle
	cfg     config.PumpConfig
	clk     clock.Clock
	limiter *rate.Limiter
	rec     Recorder

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	cause error

	started atomic.Bool
	done    chan struct{}
	err     error

	// release 结束时按序调用，用于关闭外部资源
	release []func() error
}

func newWrapper(name string, point *pipe.Point, opts Options) (*Wrapper, error) {
	opts = opts.normalized()
	h, err := point.Attach(pipe.AttachOptions{
		Direction:         opts.Direction,
		AllowDisconnected: opts.AllowDisconnected,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: 附着端点失败: %w", name, err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = point.Pipe().Clock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Wrapper{
		name:    name,
		point:   point,
		handle:  h,
		cfg:     opts.Config,
		clk:     clk,
		limiter: newLimiter(opts.Config),
		rec:     opts.Recorder,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}, nil
}

// Name 返回适配器名称
func (w *Wrapper) Name() string { return w.name }

// Point 返回驱动的端点
func (w *Wrapper) Point() *pipe.Point { return w.point }

// Handle 返回端点的附着句柄，可用于安装层信息
func (w *Wrapper) Handle() *pipe.AttachHandle { return w.handle }

// Done 适配器结束时关闭
func (w *Wrapper) Done() <-chan struct{} { return w.done }

// Err 返回结束原因；正常结束为 nil
func (w *Wrapper) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// Wait 等待适配器结束
func (w *Wrapper) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel 结束适配器；err 非空时作为故障记入异常队列
func (w *Wrapper) Cancel(err error) {
	if err != nil {
		w.mu.Lock()
		if w.cause == nil {
			w.cause = types.AsFault(err, types.FaultResource, w.name)
		}
		w.mu.Unlock()
	}
	w.cancel()

	// 未启动时直接收尾
	if w.started.CompareAndSwap(false, true) {
		w.finish(nil)
	}
}

// Close 正常结束适配器并等待收尾完成
func (w *Wrapper) Close() error {
	w.Cancel(nil)
	<-w.done
	return nil
}

// start 启动循环；interrupt 在循环 ctx 结束时调用，用于打断不支持 ctx 的阻塞调用
func (w *Wrapper) start(interrupt func(), loops ...loop) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	g, gctx := errgroup.WithContext(w.ctx)
	if interrupt != nil {
		context.AfterFunc(gctx, interrupt)
	}
	for _, l := range loops {
		l := l
		g.Go(func() error { return l(gctx) })
	}

	log.Debug("泵适配器启动", "name", w.name, "point", w.point, "loops", len(loops))
	go func() {
		w.finish(g.Wait())
	}()
	return nil
}

func (w *Wrapper) finish(loopErr error) {
	w.cancel()

	w.mu.Lock()
	cause := w.cause
	w.mu.Unlock()
	if cause == nil {
		cause = w.classify(loopErr)
	}

	var err error
	for _, fn := range w.release {
		err = multierr.Append(err, fn())
	}
	err = multierr.Append(err, w.handle.Close())
	if err != nil {
		log.Debug("泵适配器释放资源出错", "name", w.name, "err", err)
	}

	w.point.Pipe().Cancel(cause)
	w.err = cause
	close(w.done)

	if cause != nil {
		log.Warn("泵适配器异常结束", "name", w.name, "point", w.point, "err", cause)
	} else {
		log.Debug("泵适配器结束", "name", w.name, "point", w.point)
	}
}

// classify 将循环错误归类；正常结束返回 nil
func (w *Wrapper) classify(err error) error {
	switch {
	case err == nil,
		errors.Is(err, errEndOfStream),
		errors.Is(err, errDrained),
		errors.Is(err, context.Canceled):
		return nil
	case w.ctx.Err() != nil:
		// 已被取消，外部资源关闭引起的错误不算故障
		return nil
	case types.IsDisconnected(err) && w.point.Pipe().IsCanceled():
		return nil
	}
	return types.AsFault(err, types.FaultResource, w.name)
}

// ============================================================================
//                              等待与限速
// ============================================================================

// wait 等待就绪、断开、ctx 结束或一个轮询周期
func (w *Wrapper) wait(ctx context.Context, ready, done <-chan struct{}) error {
	t := w.clk.Timer(w.cfg.PollInterval.Duration())
	defer t.Stop()

	select {
	case <-ready:
	case <-done:
	case <-t.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (w *Wrapper) waitWritable(ctx context.Context, b signaler) error {
	for !b.IsReadyToWrite() {
		if err := w.wait(ctx, b.Writable(), b.Done()); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wrapper) throttle(ctx context.Context, n int) error {
	if w.limiter == nil {
		return nil
	}
	burst := w.limiter.Burst()
	for n > 0 {
		k := min(n, burst)
		if err := w.limiter.WaitN(ctx, k); err != nil {
			return err
		}
		n -= k
	}
	return nil
}

func (w *Wrapper) recordIn(n int) {
	if w.rec != nil {
		w.rec.RecordIn(n)
	}
}

func (w *Wrapper) recordOut(n int) {
	if w.rec != nil {
		w.rec.RecordOut(n)
	}
}

// ============================================================================
//                              循环
// ============================================================================

// streamIn 外部资源 → StreamWriter
func (w *Wrapper) streamIn(read func(ctx context.Context, p []byte) (int, error)) loop {
	return func(ctx context.Context) error {
		writer := w.point.StreamWriter()
		buf := make([]byte, w.cfg.ReadSize)
		for {
			if err := w.waitWritable(ctx, writer); err != nil {
				return err
			}

			n, err := read(ctx, buf)
			if n > 0 {
				if terr := w.throttle(ctx, n); terr != nil {
					return terr
				}
				if werr := writer.Enqueue(append([]byte(nil), buf[:n]...)); werr != nil {
					return werr
				}
				writer.CompleteWrite()
				w.recordIn(n)
			}
			if errors.Is(err, io.EOF) {
				writer.Disconnect(nil)
				return errEndOfStream
			}
			if err != nil {
				return err
			}
		}
	}
}

// streamOut StreamReader → 外部资源；排空断开后调用 shutdown
func (w *Wrapper) streamOut(write func(ctx context.Context, bufs [][]byte) error, shutdown func() error) loop {
	return func(ctx context.Context) error {
		reader := w.point.StreamReader()
		for {
			bufs := reader.Dequeue(int64(w.cfg.MaxBatchBytes), true)
			if len(bufs) == 0 {
				if reader.Drained() != nil {
					if shutdown != nil {
						_ = shutdown()
					}
					return errDrained
				}
				if err := w.wait(ctx, reader.Readable(), reader.Done()); err != nil {
					return err
				}
				continue
			}
			reader.CompleteRead()

			n := 0
			for _, b := range bufs {
				n += len(b)
			}
			if err := w.throttle(ctx, n); err != nil {
				return err
			}
			if err := write(ctx, bufs); err != nil {
				return err
			}
			w.recordOut(n)
		}
	}
}

// datagramIn 外部资源 → DatagramWriter
func (w *Wrapper) datagramIn(recv func(ctx context.Context, p []byte) (int, net.Addr, error)) loop {
	return func(ctx context.Context) error {
		writer := w.point.DatagramWriter()
		buf := make([]byte, maxDatagramSize)
		for {
			if err := w.waitWritable(ctx, writer); err != nil {
				return err
			}

			n, addr, err := recv(ctx, buf)
			if errors.Is(err, io.EOF) {
				writer.Disconnect(nil)
				return errEndOfStream
			}
			if err != nil {
				return err
			}
			if terr := w.throttle(ctx, n); terr != nil {
				return terr
			}
			d := types.Datagram{Data: append([]byte(nil), buf[:n]...), Addr: addr}
			if werr := writer.Enqueue(d); werr != nil {
				return werr
			}
			writer.CompleteWrite()
			w.recordIn(n)
		}
	}
}

// datagramOut DatagramReader → 外部资源
func (w *Wrapper) datagramOut(send func(ctx context.Context, d types.Datagram) error) loop {
	return func(ctx context.Context) error {
		reader := w.point.DatagramReader()
		for {
			ds := reader.Dequeue(w.cfg.MaxDatagramBatch)
			if len(ds) == 0 {
				if reader.Drained() != nil {
					return errDrained
				}
				if err := w.wait(ctx, reader.Readable(), reader.Done()); err != nil {
					return err
				}
				continue
			}
			reader.CompleteRead()

			for _, d := range ds {
				if err := w.throttle(ctx, d.Len()); err != nil {
					return err
				}
				if err := send(ctx, d); err != nil {
					return err
				}
				w.recordOut(d.Len())
			}
		}
	}
}
