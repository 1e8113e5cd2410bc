package types

// ============================================================================
//                              Side - 管道端
// ============================================================================

// Side 双工管道的一端
type Side int

const (
	// SideA A 端（下层/提供方）
	SideA Side = iota
	// SideB B 端（上层/使用方）
	SideB
)

// String 返回端的字符串表示
func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return "unknown"
	}
}

// Other 返回对端
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// ============================================================================
//                              Direction - 连接方向
// ============================================================================

// Direction 连接方向
//
// 附着管道端时记录，用于区分主动建立（出站）与被动接受（入站）。
type Direction int

const (
	// DirUnknown 未知方向
	DirUnknown Direction = iota
	// DirInbound 入站连接
	DirInbound
	// DirOutbound 出站连接
	DirOutbound
)

// String 返回方向的字符串表示
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              BufferEvent - 缓冲区事件
// ============================================================================

// BufferEvent 弹性缓冲区状态变化事件
type BufferEvent int

const (
	// EventEmptyToNonEmpty 缓冲区由空变为非空
	EventEmptyToNonEmpty BufferEvent = iota + 1
	// EventNonEmptyToEmpty 缓冲区由非空变为空
	EventNonEmptyToEmpty
	// EventWritten 写入完成（flush）
	EventWritten
	// EventRead 读取完成
	EventRead
	// EventDisconnected 缓冲区已断开
	EventDisconnected
)

// String 返回事件的字符串表示
func (e BufferEvent) String() string {
	switch e {
	case EventEmptyToNonEmpty:
		return "empty->non-empty"
	case EventNonEmptyToEmpty:
		return "non-empty->empty"
	case EventWritten:
		return "written"
	case EventRead:
		return "read"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              NonStopWritePolicy - 不阻塞写策略
// ============================================================================

// NonStopWritePolicy 写入方不能等待时的处理策略
type NonStopWritePolicy int

const (
	// PolicyForce 忽略阈值强制写入
	PolicyForce NonStopWritePolicy = iota
	// PolicyDiscardExisting 丢弃最旧的数据为新数据腾出空间
	PolicyDiscardExisting
	// PolicyDiscardIncoming 截断新数据至剩余容量
	PolicyDiscardIncoming
)

// String 返回策略的字符串表示
func (p NonStopWritePolicy) String() string {
	switch p {
	case PolicyForce:
		return "force"
	case PolicyDiscardExisting:
		return "discard-existing"
	case PolicyDiscardIncoming:
		return "discard-incoming"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              StackState - 协议栈状态
// ============================================================================

// StackState 协议栈实例状态
type StackState int

const (
	// StateUnattached 尚未连接或监听
	StateUnattached StackState = iota
	// StateConnected 已连接
	StateConnected
	// StateListening 监听中
	StateListening
	// StateClosed 已关闭
	StateClosed
)

// String 返回状态的字符串表示
func (s StackState) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
