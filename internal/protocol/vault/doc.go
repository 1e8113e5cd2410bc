// Package vault 实现 DataVault 帧协议
//
// 协议完全经由管道流收发：
//
//	握手: magic(4 字节, 0x44565431 "DVT1") + version(4 字节大端)
//	帧:   type(int32 大端) [+ size(int32 大端) + payload]
//
// 双方各自发送自己的版本，协商版本取两者较小值。magic 不符、版本为 0、
// 未知帧类型以及超过 MaxFrameSize 的负载都以协议故障返回。
//
// 负载内的键值记录使用 protobuf 线格式编码（字段 1 为键，字段 2 为值），
// Server 端的存储是带容量上限的 LRU。
package vault
