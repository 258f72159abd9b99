package types

import (
	"net/netip"
	"time"
)

// DiscoveredSession 局域网发现到的一个会话
//
// 标识为 (HostName, Endpoint)，同一标识在注册表中至多一项。
type DiscoveredSession struct {
	// HostName 主机在应答中报告的名称
	HostName string

	// Endpoint 应答来源端点
	Endpoint netip.AddrPort

	// LastSeen 最近一次收到应答的时间
	LastSeen time.Time
}

// SessionKey 会话标识
type SessionKey struct {
	HostName string
	Endpoint netip.AddrPort
}

// Key 返回会话标识
func (s DiscoveredSession) Key() SessionKey {
	return SessionKey{HostName: s.HostName, Endpoint: s.Endpoint}
}

// Expired 判断会话在 now 时刻是否已过期
func (s DiscoveredSession) Expired(now time.Time, lifetime time.Duration) bool {
	return !now.Before(s.LastSeen.Add(lifetime))
}

// String 返回会话的字符串表示
func (s DiscoveredSession) String() string {
	return s.HostName + "@" + s.Endpoint.String()
}
