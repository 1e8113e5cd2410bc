// Package muxer 提供多路复用中间层的依赖注入模块
//
// 子包 yamux 在 net.Conn（通常是管道的 pipe.Stream）上建立
// hashicorp/yamux 会话，每个子流同样是 net.Conn，可以再由
// pump.StreamWrapper 桥接到新的管道。
package muxer
