// Package quic 实现基于 QUIC 的投递引擎
//
// 引擎在一个 UDP 套接字上同时承载 QUIC 连接与无连接数据报：
// 首字节未设置 QUIC 固定位（0x40）的数据报由 quic-go 交还给引擎，
// 作为 EventUnconnected 交付（局域网发现、中继登记、打洞、STUN）。
//
// # 连接握手
//
// 客户端建立 QUIC 连接后打开控制流，写入 [u32 len][payload]
// （len 为 0xFFFFFFFF 表示未携带连接数据），服务端在轮询线程上
// 决定接受（回写 1 字节）或以应用错误码 0x1 关闭连接。
//
// # 数据
//
//   - 可靠有序：控制流上的 [u32 len][data] 帧
//   - 不可靠：QUIC datagram
//
// 所有事件经互斥队列在 PollEvents 中按到达顺序交付。
package quic
