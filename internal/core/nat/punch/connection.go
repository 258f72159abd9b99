package punch

import (
	"net/netip"

	"github.com/dep2p/go-punchnet/pkg/interfaces"
	"github.com/dep2p/go-punchnet/pkg/types"
)

// Connection 连接池中的一个槽位
//
// 槽位在断开后被复用，上层不应在 OnDisconnected 之后继续持有。
type Connection struct {
	t        *Transport
	slot     int
	peer     types.PeerID
	endpoint netip.AddrPort
	bound    bool
}

var _ interfaces.Connection = (*Connection)(nil)

// Peer 引擎对端句柄
func (c *Connection) Peer() types.PeerID {
	return c.peer
}

// Slot 槽位索引
func (c *Connection) Slot() int {
	return c.slot
}

// Endpoint 远端端点
func (c *Connection) Endpoint() netip.AddrPort {
	return c.endpoint
}

// MTU 单个不可靠数据报最大载荷
func (c *Connection) MTU() int {
	return c.t.engine.MTU(c.peer)
}

// Send 不可靠发送
func (c *Connection) Send(data []byte) error {
	return c.t.engine.Send(c.peer, data, types.DeliveryUnreliable)
}

// SendUserData 按投递方式发送，非 Unreliable 一律按可靠有序发送
func (c *Connection) SendUserData(data []byte, method types.DeliveryMethod) error {
	if method != types.DeliveryUnreliable {
		method = types.DeliveryReliableOrdered
	}
	return c.t.engine.Send(c.peer, data, method)
}

// String 返回连接的字符串表示
func (c *Connection) String() string {
	return c.endpoint.String()
}
