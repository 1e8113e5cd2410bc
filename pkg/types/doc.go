// Package types 定义 netpipe 的基础类型
//
// 这是最底层的包，不依赖其他内部包。管道、泵适配器与协议栈
// 之间传递的枚举、故障与层信息都定义在这里。
//
// # 文件组织
//
//   - enums.go     - Side, Direction, BufferEvent, NonStopWritePolicy, StackState
//   - errors.go    - 哨兵错误与 Fault 故障分类
//   - layer.go     - LayerKind, LayerInfo, IPInfo, TCPInfo, TLSInfo
//   - datagram.go  - Datagram 数据报
package types
