// Package pump 提供管道端点与外部资源之间的泵适配器
//
// 每个适配器附着一个 pipe.Point，最多运行四个循环：
//
//	流读取     外部资源 → StreamWriter
//	流写出     StreamReader → 外部资源
//	数据报读取 外部资源 → DatagramWriter
//	数据报写出 DatagramReader → 外部资源
//
// 循环在当前可用的数据上批量搬运；没有数据或缓冲区超过阈值时
// 等待就绪信号，等待时长不超过 PollInterval。
//
// # 结束条件
//
//   - 外部资源读到 EOF：断开对应缓冲区并结束适配器
//   - 管道一侧断开且已排空：关闭外部资源的写方向并结束适配器
//   - 任一循环出错：错误归类为 Fault，记入共享异常队列并取消管道
//
// 适配器结束时关闭外部资源、释放附着句柄并取消管道。
//
// Options.Recorder 非空时，每次成功搬运后记录字节数。
package pump
