// Package natproto 定义主机、客户端与会合中继之间的无连接消息
//
// 登记包沿用固定二进制布局 [string ip][int32 port]，由主机周期性发送，
// 中继据此记录主机的内网端点，并以报文来源作为公网端点。
//
// 引荐相关消息（IntroduceRequest、Introduce、Punch）使用 protobuf
// 线格式编码（protowire），字段可向后兼容地扩展。
package natproto
