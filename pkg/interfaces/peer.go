package interfaces

import (
	"net/netip"

	"github.com/dep2p/go-punchnet/pkg/types"
)

// Connection 上层可见的连接
type Connection interface {
	// Peer 引擎对端句柄
	Peer() types.PeerID

	// Endpoint 远端端点
	Endpoint() netip.AddrPort

	// MTU 单个不可靠数据报最大载荷
	MTU() int

	// Send 不可靠发送
	Send(data []byte) error

	// SendUserData 按指定投递方式发送
	SendUserData(data []byte, method types.DeliveryMethod) error
}

// PeerHandler 对端生命周期的上层消费者
type PeerHandler interface {
	// OnConnectRequest 服务端决定是否接受连接请求
	//
	// payload 为连接请求携带的数据，未携带时为 nil。
	OnConnectRequest(payload []byte, remote netip.AddrPort) bool

	// OnConnected 连接建立
	OnConnected(conn Connection)

	// OnDisconnected 已建立的连接断开
	OnDisconnected(conn Connection, reason types.TransportDisconnectReason)

	// OnReceive 收到数据，data 只在回调期间有效
	OnReceive(conn Connection, data []byte)

	// OnConnectFailed 客户端连接失败
	OnConnectFailed(reason types.ConnectFailedReason)
}

// DiscoveryListener 局域网会话列表变化的消费者
type DiscoveryListener interface {
	// OnDiscoveredSessionsUpdated 会话列表发生变化，sessions 为快照
	OnDiscoveredSessionsUpdated(sessions []types.DiscoveredSession)
}

// DiscoveryListenerFunc 函数形式的 DiscoveryListener
type DiscoveryListenerFunc func(sessions []types.DiscoveredSession)

// OnDiscoveredSessionsUpdated 实现 DiscoveryListener
func (f DiscoveryListenerFunc) OnDiscoveredSessionsUpdated(sessions []types.DiscoveredSession) {
	f(sessions)
}
