// Package server 实现会合中继服务端
//
// 中继只转发引荐信息，不转发流量：
//
//   - 主机周期性发送登记包，中继以观察到的公网端点与上报的内网端点
//     两个键记录主机，条目在 EntryTTL 内未刷新即过期
//   - 客户端以 "ip:port" 令牌请求引荐，中继向双方各发送一条 Introduce，
//     携带对方的内网与公网端点，双方随即互相打洞
//
// 未知令牌与无法解码的数据报被计数后丢弃。
package server
