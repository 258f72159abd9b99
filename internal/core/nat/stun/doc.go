// Package stun 通过 STUN（RFC 5389）Binding 请求获取主机的公网端点
//
// Prober 不持有套接字：请求经由调用方的套接字发出（与对端流量共用
// 同一个 NAT 映射），响应由调用方在轮询中转交给 Handle。
//
//	p := stun.NewProber()
//	req, _ := p.Request()
//	engine.SendUnconnected(req, server)
//	...
//	if stun.IsMessage(data) {
//	    if ep, ok := p.Handle(data); ok { ... }
//	}
package stun
