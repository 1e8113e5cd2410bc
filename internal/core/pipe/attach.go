package pipe

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-netpipe/pkg/types"
)

// AttachHandle 端点的独占驱动权
//
// 同一端点同一时刻只存在一个有效句柄。Close 释放驱动权：先停止空闲检测器，
// 再按需卸载层信息，最后归还附着令牌。
type AttachHandle struct {
	point *Point
	dir   types.Direction

	closed atomic.Bool

	mu        sync.Mutex
	node      *LayerNode
	uninstall bool
	recvIdle  *idleDetector
	sendIdle  *idleDetector
	stream    *Stream
}

func newAttachHandle(p *Point, dir types.Direction) *AttachHandle {
	return &AttachHandle{point: p, dir: dir}
}

// Point 返回附着的端点
func (h *AttachHandle) Point() *Point { return h.point }

// Direction 返回附着方向
func (h *AttachHandle) Direction() types.Direction { return h.dir }

// IsClosed 句柄是否已释放
func (h *AttachHandle) IsClosed() bool { return h.closed.Load() }

// SetLayerInfo 在端点上安装层信息
//
// 每个句柄只能安装一次。B 端安装在锚点之上，A 端安装在锚点之下。
// uninstallOnDetach 为 true 时句柄 Close 会卸载该节点。
func (h *AttachHandle) SetLayerInfo(info types.LayerInfo, owner any, uninstallOnDetach bool) (*LayerNode, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed.Load() {
		return nil, types.ErrDetached
	}
	if h.node != nil {
		return nil, types.ErrLayerAlreadySet
	}

	layers := h.point.Layers()
	node := NewLayerNode(info, owner)
	superior := h.point.side == types.SideB
	if err := layers.Install(node, layers.Anchor(), superior); err != nil {
		return nil, err
	}
	h.node = node
	h.uninstall = uninstallOnDetach
	return node, nil
}

// LayerNode 返回本句柄安装的层节点
func (h *AttachHandle) LayerNode() *LayerNode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.node
}

// SetStreamReceiveTimeout 装配接收空闲检测器；d <= 0 解除
func (h *AttachHandle) SetStreamReceiveTimeout(d time.Duration) {
	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return
	}
	old := h.recvIdle
	h.recvIdle = nil
	if d > 0 {
		h.recvIdle = newReceiveDetector(h.point, d)
	}
	h.mu.Unlock()

	if old != nil {
		old.stop()
	}
}

// SetStreamSendTimeout 装配发送空闲检测器；d <= 0 解除
func (h *AttachHandle) SetStreamSendTimeout(d time.Duration) {
	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return
	}
	old := h.sendIdle
	h.sendIdle = nil
	if d > 0 {
		h.sendIdle = newSendDetector(h.point, d)
	}
	h.mu.Unlock()

	if old != nil {
		old.stop()
	}
}

// Stream 返回绑定到本句柄的流门面
func (h *AttachHandle) Stream() *Stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stream == nil {
		h.stream = newStream(h)
	}
	return h.stream
}

// Close 释放驱动权，幂等
func (h *AttachHandle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}

	h.mu.Lock()
	recv, send := h.recvIdle, h.sendIdle
	h.recvIdle, h.sendIdle = nil, nil
	node, uninstall := h.node, h.uninstall
	h.mu.Unlock()

	// 先停检测器，避免超时拆除与释放互相等待
	if recv != nil {
		recv.stop()
	}
	if send != nil {
		send.stop()
	}

	var err error
	if node != nil && uninstall {
		err = h.point.Layers().Uninstall(node)
	}

	h.point.token <- struct{}{}
	return err
}
