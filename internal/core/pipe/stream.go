package pipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-netpipe/pkg/types"
)

// Stream 附着端点上的流门面
//
// Stream 实现 net.Conn，可以直接承载 crypto/tls 与 yamux。
// Read 在对端断开且数据排空后返回 io.EOF；其余接口返回带类别的 *types.Fault。
type Stream struct {
	h *AttachHandle
	p *Point

	mu sync.Mutex
	rd deadlineState
	wr deadlineState

	// recorded 断开故障是否已记入异常队列
	recorded atomic.Bool
}

var _ net.Conn = (*Stream)(nil)

func newStream(h *AttachHandle) *Stream {
	return &Stream{h: h, p: h.point}
}

// Handle 返回附着句柄
func (s *Stream) Handle() *AttachHandle { return s.h }

// Point 返回端点
func (s *Stream) Point() *Point { return s.p }

// Layers 返回层信息层级
func (s *Stream) Layers() *LayerHierarchy { return s.p.Layers() }

// ============================================================================
//                              发送
// ============================================================================

// Send 等待可写后写入 p 的副本并刷新
func (s *Stream) Send(ctx context.Context, p []byte) error {
	if s.h.IsClosed() {
		return types.ErrDetached
	}
	if len(p) == 0 {
		return nil
	}
	limit, err := s.begin(false)
	if err != nil {
		return err
	}

	w := s.p.StreamWriter()
	if err := s.wait(ctx, false, limit, w.WaitWritable); err != nil {
		return opErr("stream send", err)
	}
	if err := w.Enqueue(append([]byte(nil), p...)); err != nil {
		return err
	}
	w.CompleteWrite()
	return nil
}

// SendNonStop 按策略写入且不等待，返回接受的字节数
func (s *Stream) SendNonStop(p []byte, policy types.NonStopWritePolicy) (int, error) {
	if s.h.IsClosed() {
		return 0, types.ErrDetached
	}
	w := s.p.StreamWriter()
	n, err := w.EnqueueNonStop(append([]byte(nil), p...), policy)
	if err != nil {
		return 0, err
	}
	w.CompleteWrite()
	return n, nil
}

// Flush 发布写入完成边界
func (s *Stream) Flush() {
	s.p.StreamWriter().CompleteWrite()
	s.p.DatagramWriter().CompleteWrite()
}

// Write 实现 io.Writer
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.Send(context.Background(), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// CloseWrite 半关闭：断开本端写方向，对端读完后看到 EOF
func (s *Stream) CloseWrite() error {
	s.p.StreamWriter().Disconnect(types.NewFault(types.FaultDisconnected, "stream close write", nil))
	return nil
}

// ============================================================================
//                              接收
// ============================================================================

// Receive 等待数据并取出至多 max 字节；max <= 0 取出当前全部
func (s *Stream) Receive(ctx context.Context, max int) ([]byte, error) {
	if s.h.IsClosed() {
		return nil, types.ErrDetached
	}
	limit, err := s.begin(true)
	if err != nil {
		return nil, err
	}

	r := s.p.StreamReader()
	for {
		if n := r.Len(); n > 0 {
			if max > 0 && int64(max) < n {
				n = int64(max)
			}
			buf := make([]byte, n)
			got := r.DequeueBytes(buf)
			if got == 0 {
				continue
			}
			r.CompleteRead()
			return buf[:got], nil
		}
		if err := r.Drained(); err != nil {
			return nil, s.record(err)
		}
		if err := s.wait(ctx, true, limit, readable(r)); err != nil {
			return nil, opErr("stream receive", err)
		}
	}
}

// ReceiveAll 读取恰好 n 字节；出错时返回已读取的部分
func (s *Stream) ReceiveAll(ctx context.Context, n int) ([]byte, error) {
	if s.h.IsClosed() {
		return nil, types.ErrDetached
	}
	if n < 0 {
		return nil, fmt.Errorf("stream receive all %d: %w", n, types.ErrInvalidRange)
	}
	limit, err := s.begin(true)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, n)
	off := 0
	for off < n {
		k, err := s.receiveInto(ctx, buf[off:], limit)
		off += k
		if err != nil {
			return buf[:off], err
		}
	}
	return buf, nil
}

// Read 实现 io.Reader
func (s *Stream) Read(p []byte) (int, error) {
	if s.h.IsClosed() {
		return 0, types.ErrDetached
	}
	if len(p) == 0 {
		return 0, nil
	}
	limit, err := s.begin(true)
	if err != nil {
		return 0, err
	}

	n, err := s.receiveInto(context.Background(), p, limit)
	if err != nil && n == 0 {
		var f *types.Fault
		if errors.As(err, &f) && f.Kind == types.FaultDisconnected {
			return 0, io.EOF
		}
	}
	return n, err
}

func (s *Stream) receiveInto(ctx context.Context, p []byte, limit time.Time) (int, error) {
	r := s.p.StreamReader()
	for {
		if n := r.DequeueBytes(p); n > 0 {
			r.CompleteRead()
			return n, nil
		}
		if err := r.Drained(); err != nil {
			return 0, s.record(err)
		}
		if err := s.wait(ctx, true, limit, readable(r)); err != nil {
			return 0, opErr("stream receive", err)
		}
	}
}

// Peek 拷贝至多 max 字节但不取出；max <= 0 拷贝全部
func (s *Stream) Peek(max int) []byte {
	r := s.p.StreamReader()
	n := r.Len()
	if max > 0 && int64(max) < n {
		n = int64(max)
	}
	buf := make([]byte, n)
	return buf[:r.PeekBytes(buf)]
}

// FastPeek 返回至多 max 字节的零拷贝视图，调用方不得修改
func (s *Stream) FastPeek(max int64) [][]byte {
	return s.p.StreamReader().Peek(max)
}

// record 第一次观察到断开时记入异常队列
func (s *Stream) record(err error) error {
	if s.recorded.CompareAndSwap(false, true) {
		s.p.Exceptions().Raise(err)
	}
	return err
}

// ============================================================================
//                              数据报
// ============================================================================

// SendDatagram 等待可写后写入一个数据报
func (s *Stream) SendDatagram(ctx context.Context, d types.Datagram) error {
	if s.h.IsClosed() {
		return types.ErrDetached
	}
	limit, err := s.begin(false)
	if err != nil {
		return err
	}

	w := s.p.DatagramWriter()
	if err := s.wait(ctx, false, limit, w.WaitWritable); err != nil {
		return opErr("datagram send", err)
	}
	d.Data = append([]byte(nil), d.Data...)
	if err := w.Enqueue(d); err != nil {
		return err
	}
	w.CompleteWrite()
	return nil
}

// ReceiveDatagrams 等待并取出至多 max 个数据报；max <= 0 取出全部
func (s *Stream) ReceiveDatagrams(ctx context.Context, max int) ([]types.Datagram, error) {
	if s.h.IsClosed() {
		return nil, types.ErrDetached
	}
	limit, err := s.begin(true)
	if err != nil {
		return nil, err
	}

	r := s.p.DatagramReader()
	for {
		if ds := r.Dequeue(max); len(ds) > 0 {
			r.CompleteRead()
			return ds, nil
		}
		if err := r.Drained(); err != nil {
			return nil, s.record(err)
		}
		if err := s.wait(ctx, true, limit, readable(r)); err != nil {
			return nil, opErr("datagram receive", err)
		}
	}
}

// ============================================================================
//                              超时与截止时间
// ============================================================================

// errDeadlineChanged 截止时间被修改，打断阻塞中的等待
var errDeadlineChanged = errors.New("deadline changed")

// deadlineState 单个方向的超时与截止时间
type deadlineState struct {
	timeout  time.Duration
	deadline time.Time

	// waiters 阻塞中的等待；截止时间变化时以 errDeadlineChanged 取消
	waiters map[*context.CancelCauseFunc]struct{}
}

func (d *deadlineState) setDeadline(t time.Time) {
	d.deadline = t
	for cancel := range d.waiters {
		(*cancel)(errDeadlineChanged)
	}
}

// effective 合并操作超时上限与截止时间，取较早者
func (d *deadlineState) effective(limit time.Time) time.Time {
	if limit.IsZero() || (!d.deadline.IsZero() && d.deadline.Before(limit)) {
		return d.deadline
	}
	return limit
}

// SetReadTimeout 设置每次接收操作的超时，0 表示不限
func (s *Stream) SetReadTimeout(d time.Duration) {
	s.mu.Lock()
	s.rd.timeout = d
	s.mu.Unlock()
}

// SetWriteTimeout 设置每次发送操作的超时，0 表示不限
func (s *Stream) SetWriteTimeout(d time.Duration) {
	s.mu.Lock()
	s.wr.timeout = d
	s.mu.Unlock()
}

// SetDeadline 实现 net.Conn
func (s *Stream) SetDeadline(t time.Time) error {
	s.mu.Lock()
	s.rd.setDeadline(t)
	s.wr.setDeadline(t)
	s.mu.Unlock()
	return nil
}

// SetReadDeadline 实现 net.Conn，同时作用于阻塞中的读取
func (s *Stream) SetReadDeadline(t time.Time) error {
	s.mu.Lock()
	s.rd.setDeadline(t)
	s.mu.Unlock()
	return nil
}

// SetWriteDeadline 实现 net.Conn，同时作用于阻塞中的写入
func (s *Stream) SetWriteDeadline(t time.Time) error {
	s.mu.Lock()
	s.wr.setDeadline(t)
	s.mu.Unlock()
	return nil
}

func (s *Stream) state(read bool) *deadlineState {
	if read {
		return &s.rd
	}
	return &s.wr
}

func timeoutFault(read bool) error {
	op := "stream write"
	if read {
		op = "stream read"
	}
	return types.NewFault(types.FaultTimeout, op, context.DeadlineExceeded)
}

// begin 开始一次操作，返回由操作超时决定的上限
//
// 截止时间已过时直接返回超时故障，即使已有数据可读。
func (s *Stream) begin(read bool) (time.Time, error) {
	now := time.Now()
	s.mu.Lock()
	st := s.state(read)
	var limit time.Time
	if st.timeout > 0 {
		limit = now.Add(st.timeout)
	}
	deadline := st.effective(limit)
	s.mu.Unlock()

	if !deadline.IsZero() && !now.Before(deadline) {
		return limit, timeoutFault(read)
	}
	return limit, nil
}

// wait 在当前截止时间下执行阻塞等待
//
// 等待期间截止时间被修改时按新值重新等待；新值已过期则返回超时故障。
func (s *Stream) wait(ctx context.Context, read bool, limit time.Time, fn func(context.Context) error) error {
	for {
		s.mu.Lock()
		st := s.state(read)
		deadline := st.effective(limit)
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			s.mu.Unlock()
			return timeoutFault(read)
		}
		cctx, cancel := context.WithCancelCause(ctx)
		if st.waiters == nil {
			st.waiters = make(map[*context.CancelCauseFunc]struct{})
		}
		st.waiters[&cancel] = struct{}{}
		s.mu.Unlock()

		wctx, stop := cctx, context.CancelFunc(func() {})
		if !deadline.IsZero() {
			wctx, stop = context.WithDeadline(cctx, deadline)
		}
		err := fn(wctx)
		changed := errors.Is(context.Cause(cctx), errDeadlineChanged)
		stop()

		s.mu.Lock()
		delete(st.waiters, &cancel)
		s.mu.Unlock()
		cancel(nil)

		if err != nil && changed && ctx.Err() == nil {
			continue
		}
		return err
	}
}

func readable(r interface {
	WaitReadable(ctx context.Context, n int64) error
}) func(context.Context) error {
	return func(ctx context.Context) error { return r.WaitReadable(ctx, 1) }
}

// opErr 把截止时间到期转换为超时故障
func opErr(op string, err error) error {
	var f *types.Fault
	if errors.As(err, &f) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewFault(types.FaultTimeout, op, err)
	}
	return err
}

// ============================================================================
//                              net.Conn
// ============================================================================

// Close 取消管道并释放附着句柄
func (s *Stream) Close() error {
	s.p.pipe.Cancel(nil)
	return s.h.Close()
}

// LocalAddr 优先返回已安装的 TCP 层本地地址
func (s *Stream) LocalAddr() net.Addr {
	if infos := s.p.Layers().TCPInfos(); len(infos) > 0 {
		return infos[0].LocalAddr()
	}
	return Addr{ID: s.p.pipe.id.String(), Side: s.p.side}
}

// RemoteAddr 优先返回已安装的 TCP 层远端地址
func (s *Stream) RemoteAddr() net.Addr {
	if infos := s.p.Layers().TCPInfos(); len(infos) > 0 {
		return infos[0].RemoteAddr()
	}
	return Addr{ID: s.p.pipe.id.String(), Side: s.p.side.Other()}
}

// Addr 管道端点地址
type Addr struct {
	ID   string
	Side types.Side
}

// Network 实现 net.Addr
func (a Addr) Network() string { return "pipe" }

// String 实现 net.Addr
func (a Addr) String() string { return a.ID + "/" + a.Side.String() }
