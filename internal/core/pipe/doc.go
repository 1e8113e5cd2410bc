// Package pipe 实现进程内双工管道
//
// DuplexPipe 持有两个方向的流缓冲区与数据报缓冲区，对外暴露 A、B 两个端点：
//
//	         A→B stream / datagram
//	Point A ───────────────────────▶ Point B
//	        ◀───────────────────────
//	         B→A stream / datagram
//
// 每个端点同一时刻只能被一个 AttachHandle 驱动。附着句柄负责安装层信息、
// 运行空闲超时检测器，并提供 Stream 门面供协议层收发数据。
//
// 同一管道的两个端点共享异常队列与层信息层级；协议栈组装时上下层的队列与层级
// 通过 Encounter 合并。
//
// 所有权：
//   - DuplexPipe 是缓冲区与端点的唯一所有者
//   - Point 只持有指向管道的非所有引用
//   - 附着令牌只能由 Attach 取出、由句柄 Close 归还
package pipe
