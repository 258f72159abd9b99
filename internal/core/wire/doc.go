// Package wire 提供无连接数据报的二进制编解码
//
// 编码规则：
//   - int32 / uint16 小端序
//   - 字符串：uint16 前缀（字节数 + 1，0 表示空串），后接 UTF-8 字节
//
// 每个无连接数据报首字节为 Kind，取值均小于 0x40，
// 与 QUIC 包共用同一个 UDP 套接字时不会被 QUIC 协议栈认领。
package wire
