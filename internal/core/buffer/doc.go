// Package buffer 实现弹性缓冲区
//
// 弹性缓冲区是由不可变内存段组成的有序序列，使用单调递增的 64 位 pin
// 偏移寻址：
//
//	PinHead ──┬─────────┬───────┬──────┬── PinTail
//	          │ seg 0   │ seg 1 │ seg 2│
//	          └─────────┴───────┴──────┘
//	Len() == PinTail() - PinHead()
//
// # 背压
//
// Threshold 是软水位：Len() 超过阈值后 IsReadyToWrite 返回 false，
// 协作的写入方应等待 Writable() 信号；强制写入（PolicyForce）仍可越过阈值。
// 每次由阈值之上回落到阈值之下，Writable() 恰好被通知一次。
//
// # 事件
//
// 写入方调用 CompleteWrite、读取方调用 CompleteRead 发布累积的变化：
//
//	EventWritten / EventRead
//	EventEmptyToNonEmpty / EventNonEmptyToEmpty
//	EventDisconnected
//
// 监听器在锁外按注册顺序调用；监听器 panic 会被记录并丢弃。
//
// # 断开
//
// Disconnect 只生效一次并记录首个故障。断开后写入失败，读取方仍可取完剩余数据。
//
// # 并发约定
//
// 每个缓冲区只有一个指定写入方和一个指定读取方；锁只保护段链表的修改，
// 不会跨越等待点持有。
package buffer
