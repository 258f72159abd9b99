// Package lan 提供基于 UDP 广播的局域网会话发现
//
// 客户端周期性地向一段端口范围广播探测包，主机以携带相同密钥
// 和主机名的应答回复。Service 维护一个会过期的会话注册表，
// 只在注册表发生变化时通知监听者。
//
// Service 由外部驱动：每帧调用 Poll(now)，依次处理入站数据报、
// 清理过期会话、发送探测、通知变化。Service 本身不是并发安全的，
// 所有调用应来自同一个驱动协程；套接字的读协程只向队列投递数据报。
//
// 线格式：
//
//	探测: [0x01][int32 secret]
//	应答: [0x02][int32 secret][string hostName]
package lan
