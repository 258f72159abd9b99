// Package interfaces 定义 punchnet 的公共接口
//
//   - transport.go - Engine 投递引擎与引擎事件
//   - peer.go      - Connection、PeerHandler、DiscoveryListener
//
// 内部实现（internal/core/...）只依赖这里的接口，
// tests/mocks 提供对应的手写 Mock。
package interfaces
