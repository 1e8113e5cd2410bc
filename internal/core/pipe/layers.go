package pipe

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-netpipe/pkg/types"
)

// LayerNode 层信息层级中的一个节点
//
// 锚点节点（每个管道一个）不携带 Info，只用于定位 A/B 两侧的安装位置。
type LayerNode struct {
	info  types.LayerInfo
	owner any

	installed atomic.Bool
	anchor    bool
}

// NewLayerNode 创建待安装的层节点
func NewLayerNode(info types.LayerInfo, owner any) *LayerNode {
	return &LayerNode{info: info, owner: owner}
}

// Info 返回层信息
func (n *LayerNode) Info() types.LayerInfo { return n.info }

// Owner 返回安装该层的协议栈
func (n *LayerNode) Owner() any { return n.owner }

// layerCore 层级共享状态，nodes 自上而下排列
type layerCore struct {
	mu      sync.Mutex
	nodes   []*LayerNode
	forward *layerCore
}

// LayerHierarchy 管道的层信息层级视图
//
// 每个管道持有一个锚点；从 B 侧安装的节点位于锚点之上，从 A 侧安装的位于锚点之下。
// 两个层级 Encounter 后共享同一核心，所有持有者看到合并后的视图。
type LayerHierarchy struct {
	core   *layerCore
	anchor *LayerNode
}

// NewLayerHierarchy 创建只含锚点的层级
func NewLayerHierarchy() *LayerHierarchy {
	c := &layerCore{}
	anchor := &LayerNode{anchor: true}
	anchor.installed.Store(true)
	c.nodes = []*LayerNode{anchor}
	return &LayerHierarchy{core: c, anchor: anchor}
}

// Anchor 返回本管道的锚点
func (h *LayerHierarchy) Anchor() *LayerNode {
	return h.anchor
}

func (h *LayerHierarchy) lock() *layerCore {
	c := h.core
	for {
		c.mu.Lock()
		if c.forward == nil {
			return c
		}
		next := c.forward
		c.mu.Unlock()
		c = next
	}
}

func (h *LayerHierarchy) root() *layerCore {
	c := h.lock()
	c.mu.Unlock()
	return c
}

// ============================================================================
//                              安装与卸载
// ============================================================================

// Install 把 node 安装到 relativeTo 的紧上方（superior）或紧下方
func (h *LayerHierarchy) Install(node, relativeTo *LayerNode, superior bool) error {
	if node == nil || node.anchor {
		return fmt.Errorf("install layer: %w", types.ErrLayerAlreadyInstalled)
	}
	if relativeTo == nil {
		relativeTo = h.anchor
	}

	if !node.installed.CompareAndSwap(false, true) {
		return types.ErrLayerAlreadyInstalled
	}

	c := h.lock()
	defer c.mu.Unlock()

	idx := c.indexLocked(relativeTo)
	if idx < 0 {
		node.installed.Store(false)
		return fmt.Errorf("install relative to foreign node: %w", types.ErrLayerNotInstalled)
	}
	if !superior {
		idx++
	}
	c.nodes = append(c.nodes, nil)
	copy(c.nodes[idx+1:], c.nodes[idx:])
	c.nodes[idx] = node
	return nil
}

// Uninstall 移除 node
func (h *LayerHierarchy) Uninstall(node *LayerNode) error {
	if node == nil || node.anchor {
		return types.ErrLayerNotInstalled
	}
	c := h.lock()
	defer c.mu.Unlock()

	idx := c.indexLocked(node)
	if idx < 0 {
		return types.ErrLayerNotInstalled
	}
	c.nodes = append(c.nodes[:idx], c.nodes[idx+1:]...)
	node.installed.Store(false)
	return nil
}

func (c *layerCore) indexLocked(node *LayerNode) int {
	for i, n := range c.nodes {
		if n == node {
			return i
		}
	}
	return -1
}

// Installed 节点当前是否已安装在本层级
func (h *LayerHierarchy) Installed(node *LayerNode) bool {
	c := h.lock()
	defer c.mu.Unlock()
	return c.indexLocked(node) >= 0
}

// ============================================================================
//                              查询
// ============================================================================

// Values 自上而下返回能回答 kind 查询的层信息
func (h *LayerHierarchy) Values(kind types.LayerKind) []types.LayerInfo {
	c := h.lock()
	defer c.mu.Unlock()

	var out []types.LayerInfo
	for _, n := range c.nodes {
		if n.info != nil && n.info.Provides(kind) {
			out = append(out, n.info)
		}
	}
	return out
}

// All 自上而下返回全部层信息
func (h *LayerHierarchy) All() []types.LayerInfo {
	c := h.lock()
	defer c.mu.Unlock()

	out := make([]types.LayerInfo, 0, len(c.nodes))
	for _, n := range c.nodes {
		if n.info != nil {
			out = append(out, n.info)
		}
	}
	return out
}

// Walk 自上而下对每个层信息调用访问者
//
// 访问者在锁外调用，可以安全地查询层级。
func (h *LayerHierarchy) Walk(v types.LayerVisitor) {
	for _, info := range h.All() {
		info.Accept(v)
	}
}

// IPInfos 返回全部 IP 端点信息（包括 TCP 层携带的）
func (h *LayerHierarchy) IPInfos() []*types.IPInfo {
	var out []*types.IPInfo
	for _, info := range h.Values(types.LayerIP) {
		switch v := info.(type) {
		case *types.IPInfo:
			out = append(out, v)
		case *types.TCPInfo:
			out = append(out, &v.IPInfo)
		}
	}
	return out
}

// TCPInfos 返回全部 TCP 端点信息
func (h *LayerHierarchy) TCPInfos() []*types.TCPInfo {
	var out []*types.TCPInfo
	for _, info := range h.Values(types.LayerTCP) {
		if v, ok := info.(*types.TCPInfo); ok {
			out = append(out, v)
		}
	}
	return out
}

// TLSInfos 返回全部 TLS 会话信息
func (h *LayerHierarchy) TLSInfos() []*types.TLSInfo {
	var out []*types.TLSInfo
	for _, info := range h.Values(types.LayerTLS) {
		if v, ok := info.(*types.TLSInfo); ok {
			out = append(out, v)
		}
	}
	return out
}

// Len 返回已安装的层信息个数（不含锚点）
func (h *LayerHierarchy) Len() int {
	return len(h.All())
}

// ============================================================================
//                              合并
// ============================================================================

// Encounter 合并 other 到当前层级
//
// other 的节点整体排在当前层级节点之下；合并后两边的持有者共享同一视图。
func (h *LayerHierarchy) Encounter(other *LayerHierarchy) {
	if other == nil {
		return
	}
	mergeMu.Lock()
	defer mergeMu.Unlock()

	dst, src := h.root(), other.root()
	if src == dst {
		return
	}
	dst.mu.Lock()
	defer dst.mu.Unlock()
	src.mu.Lock()
	defer src.mu.Unlock()

	dst.nodes = append(dst.nodes, src.nodes...)
	src.nodes = nil
	src.forward = dst
}
