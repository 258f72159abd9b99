// Package mocks 提供统一的测试 Mock 实现
//
// # 传输 Mock
//
//   - MockEngine: 模拟 interfaces.Engine，事件通过 Push 排队，PollEvents 交付
//   - MockConnectionRequest: 模拟 interfaces.ConnectionRequest，记录接受/拒绝
//
// # 上层消费者 Mock
//
//   - MockPeerHandler: 模拟 interfaces.PeerHandler，记录全部回调
//   - MockDiscoveryListener: 模拟 interfaces.DiscoveryListener，记录快照
//
// # 套接字 Mock
//
//   - MockSocket: 模拟局域网发现套接字，记录广播、注入入站数据报
//
// 所有 Mock 都提供 XxxFunc 字段用于覆盖默认行为，以及 XxxCalls 调用记录。
package mocks
