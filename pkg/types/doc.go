// Package types 定义 punchnet 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 punchnet 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - enums.go     - Role, DeliveryMethod, 断开/失败原因, NatAddressType
//   - discovery.go - DiscoveredSession
//   - endpoint.go  - 端点格式化与解析辅助
package types
