// Package types 定义 netpipe 的基础类型
//
// 本文件定义所有公共错误类型。
package types

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ============================================================================
//                              故障分类
// ============================================================================

var (
	// ErrDisconnected 缓冲区或管道已断开
	ErrDisconnected = errors.New("disconnected")

	// ErrTimeout 空闲超时或等待超时
	ErrTimeout = errors.New("timeout")

	// ErrProtocolViolation 协议违例（魔数错误、帧过大、握手失败）
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrResourceFault 外部资源错误（socket/stream）
	ErrResourceFault = errors.New("resource fault")
)

// ============================================================================
//                              使用错误
// ============================================================================

var (
	// ErrAlreadyAttached 管道端已被附着
	ErrAlreadyAttached = errors.New("pipe point already attached")

	// ErrDetached 附着句柄已释放
	ErrDetached = errors.New("attach handle detached")

	// ErrLayerAlreadySet 附着句柄已设置层信息
	ErrLayerAlreadySet = errors.New("layer info already set on this attach handle")

	// ErrLayerAlreadyInstalled 层信息节点已安装
	ErrLayerAlreadyInstalled = errors.New("layer info node already installed")

	// ErrLayerNotInstalled 层信息节点未安装
	ErrLayerNotInstalled = errors.New("layer info node not installed")

	// ErrAlreadyStarted 连接/监听/握手只能调用一次
	ErrAlreadyStarted = errors.New("already started")

	// ErrNotListening 协议栈未处于监听状态
	ErrNotListening = errors.New("stack is not listening")

	// ErrInvalidRange 缓冲区 pin 范围无效
	ErrInvalidRange = errors.New("invalid pin range")
)

// ============================================================================
//                              Fault 类型
// ============================================================================

// FaultKind 故障类别
type FaultKind int

const (
	// FaultDisconnected 断开（正常拆除时预期出现）
	FaultDisconnected FaultKind = iota + 1
	// FaultTimeout 超时
	FaultTimeout
	// FaultProtocol 协议违例
	FaultProtocol
	// FaultResource 外部资源错误，同时视为断开
	FaultResource
)

// String 返回故障类别的字符串表示
func (k FaultKind) String() string {
	switch k {
	case FaultDisconnected:
		return "disconnected"
	case FaultTimeout:
		return "timeout"
	case FaultProtocol:
		return "protocol violation"
	case FaultResource:
		return "resource fault"
	default:
		return "unknown fault"
	}
}

// Fault 带类别的故障
//
// 通过 errors.Is 可与 ErrDisconnected/ErrTimeout/ErrProtocolViolation/ErrResourceFault
// 比较；FaultResource 同时满足 ErrDisconnected。
type Fault struct {
	Kind FaultKind
	Op   string
	Err  error
}

// NewFault 创建故障
func NewFault(kind FaultKind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

// Error 实现 error 接口
func (f *Fault) Error() string {
	switch {
	case f.Op != "" && f.Err != nil:
		return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind, f.Err)
	case f.Op != "":
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	default:
		return f.Kind.String()
	}
}

// Unwrap 返回底层错误
func (f *Fault) Unwrap() error {
	return f.Err
}

// Is 按类别匹配哨兵错误
func (f *Fault) Is(target error) bool {
	switch target {
	case ErrDisconnected:
		return f.Kind == FaultDisconnected || f.Kind == FaultResource
	case ErrTimeout:
		return f.Kind == FaultTimeout
	case ErrProtocolViolation:
		return f.Kind == FaultProtocol
	case ErrResourceFault:
		return f.Kind == FaultResource
	}
	return false
}

// Timeout 实现 net.Error 的超时判定
func (f *Fault) Timeout() bool {
	return f.Kind == FaultTimeout
}

// Temporary 实现 net.Error
func (f *Fault) Temporary() bool {
	return f.Kind == FaultTimeout
}

// AsFault 将任意错误归类为 Fault
//
// 已是 Fault 的直接返回；截止时间到期归为超时；其它错误按 kind 包装。
func AsFault(err error, kind FaultKind, op string) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	if isTimeout(err) {
		kind = FaultTimeout
	}
	return NewFault(kind, op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsDisconnected 是否为断开类故障
func IsDisconnected(err error) bool {
	return errors.Is(err, ErrDisconnected)
}
