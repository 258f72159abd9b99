package types

// ============================================================================
//                              Role - 传输角色
// ============================================================================

// Role 传输层角色
//
// 角色在构造时显式给出，不从引擎状态推断。
type Role int

const (
	// RoleClient 客户端：发起连接，需要时经中继打洞
	RoleClient Role = iota
	// RoleServer 服务端：接受连接，向中继登记
	RoleServer
)

// String 返回角色的字符串表示
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

// ParseRole 解析角色名称
func ParseRole(s string) (Role, bool) {
	switch s {
	case "client":
		return RoleClient, true
	case "server", "host":
		return RoleServer, true
	default:
		return RoleClient, false
	}
}

// ============================================================================
//                              PeerID - 引擎对端句柄
// ============================================================================

// PeerID 引擎分配的对端标识，连接存续期间唯一
type PeerID uint32

// ============================================================================
//                              DeliveryMethod - 投递方式
// ============================================================================

// DeliveryMethod 数据投递方式
type DeliveryMethod int

const (
	// DeliveryUnreliable 不可靠、无序
	DeliveryUnreliable DeliveryMethod = iota
	// DeliveryReliableOrdered 可靠、有序
	DeliveryReliableOrdered
)

// String 返回投递方式的字符串表示
func (m DeliveryMethod) String() string {
	switch m {
	case DeliveryUnreliable:
		return "unreliable"
	case DeliveryReliableOrdered:
		return "reliable-ordered"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              DisconnectReason - 引擎断开原因
// ============================================================================

// DisconnectReason 引擎报告的断开原因
type DisconnectReason int

const (
	// DisconnectConnectionFailed 连接建立失败（对端不可达）
	DisconnectConnectionFailed DisconnectReason = iota
	// DisconnectTimeout 超时
	DisconnectTimeout
	// DisconnectHostUnreachable 主机不可达
	DisconnectHostUnreachable
	// DisconnectNetworkUnreachable 网络不可达
	DisconnectNetworkUnreachable
	// DisconnectRemoteConnectionClose 对端主动关闭
	DisconnectRemoteConnectionClose
	// DisconnectPeerCalled 本端主动断开
	DisconnectPeerCalled
	// DisconnectConnectionRejected 连接请求被拒绝
	DisconnectConnectionRejected
	// DisconnectInvalidProtocol 协议错误
	DisconnectInvalidProtocol
)

// String 返回断开原因的字符串表示
func (r DisconnectReason) String() string {
	switch r {
	case DisconnectConnectionFailed:
		return "connection-failed"
	case DisconnectTimeout:
		return "timeout"
	case DisconnectHostUnreachable:
		return "host-unreachable"
	case DisconnectNetworkUnreachable:
		return "network-unreachable"
	case DisconnectRemoteConnectionClose:
		return "remote-close"
	case DisconnectPeerCalled:
		return "peer-called"
	case DisconnectConnectionRejected:
		return "rejected"
	case DisconnectInvalidProtocol:
		return "invalid-protocol"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              上层可见的失败/断开原因
// ============================================================================

// ConnectFailedReason 连接失败原因（上报给上层）
type ConnectFailedReason int

const (
	// ConnectFailedRefused 被拒绝或无法建立
	ConnectFailedRefused ConnectFailedReason = iota
	// ConnectFailedTimeout 超时
	ConnectFailedTimeout
)

// String 返回失败原因的字符串表示
func (r ConnectFailedReason) String() string {
	if r == ConnectFailedTimeout {
		return "timeout"
	}
	return "refused"
}

// TransportDisconnectReason 已建立连接的断开原因（上报给上层）
type TransportDisconnectReason int

const (
	// TransportDisconnectShutdown 正常关闭或其他原因
	TransportDisconnectShutdown TransportDisconnectReason = iota
	// TransportDisconnectTimeout 超时
	TransportDisconnectTimeout
)

// String 返回断开原因的字符串表示
func (r TransportDisconnectReason) String() string {
	if r == TransportDisconnectTimeout {
		return "timeout"
	}
	return "shutdown"
}

// ============================================================================
//                              NatAddressType - 打洞地址类型
// ============================================================================

// NatAddressType 打洞成功时命中的地址类型
type NatAddressType int

const (
	// NatAddressInternal 内网地址
	NatAddressInternal NatAddressType = iota
	// NatAddressExternal 公网（NAT 映射后）地址
	NatAddressExternal
)

// String 返回地址类型的字符串表示
func (t NatAddressType) String() string {
	if t == NatAddressExternal {
		return "external"
	}
	return "internal"
}
