package interfaces

import (
	"net/netip"

	"github.com/dep2p/go-punchnet/pkg/types"
)

// Engine 投递引擎
//
// 引擎内部可以有任意 I/O 协程，但所有事件只在 PollEvents 中、
// 在调用方协程上按到达顺序交付。
type Engine interface {
	// Start 在指定端口启动（0 表示随机端口）
	Start(port int) error

	// Stop 停止引擎，断开所有对端
	Stop() error

	// IsRunning 是否已启动
	IsRunning() bool

	// LocalPort 返回实际绑定的本地端口
	LocalPort() int

	// Connect 向远端发起连接，payload 为 nil 表示不携带连接数据
	//
	// 结果通过 EventPeerConnected 或 EventPeerDisconnected 异步报告。
	Connect(remote netip.AddrPort, payload []byte) error

	// Disconnect 断开对端
	Disconnect(peer types.PeerID)

	// Send 向已连接对端发送数据
	Send(peer types.PeerID, data []byte, method types.DeliveryMethod) error

	// SendUnconnected 发送无连接数据报（发现、中继、打洞）
	SendUnconnected(data []byte, to netip.AddrPort) error

	// MTU 返回对端单个不可靠数据报的最大载荷
	MTU(peer types.PeerID) int

	// PollEvents 取出并依次交付所有排队事件
	PollEvents(fn func(Event))

	// ForceUpdate 立即刷新待发送数据
	ForceUpdate()
}

// EventKind 引擎事件类型
type EventKind int

const (
	// EventPeerConnected 对端连接建立
	EventPeerConnected EventKind = iota
	// EventPeerDisconnected 对端断开或连接失败
	EventPeerDisconnected
	// EventConnectionRequest 收到连接请求（服务端）
	EventConnectionRequest
	// EventReceive 收到已连接对端的数据
	EventReceive
	// EventUnconnected 收到无连接数据报
	EventUnconnected
	// EventNetworkError 套接字错误
	EventNetworkError
)

// String 返回事件类型的字符串表示
func (k EventKind) String() string {
	switch k {
	case EventPeerConnected:
		return "connected"
	case EventPeerDisconnected:
		return "disconnected"
	case EventConnectionRequest:
		return "connection-request"
	case EventReceive:
		return "receive"
	case EventUnconnected:
		return "unconnected"
	case EventNetworkError:
		return "network-error"
	default:
		return "unknown"
	}
}

// Event 引擎事件
//
// Data 只在回调期间有效。
type Event struct {
	Kind EventKind

	// Peer 对端句柄，HasPeer 为 false 时无效（连接未建立即失败）
	Peer    types.PeerID
	HasPeer bool

	// Remote 远端端点
	Remote netip.AddrPort

	// Reason 断开原因（EventPeerDisconnected）
	Reason types.DisconnectReason

	// Method 投递方式（EventReceive）
	Method types.DeliveryMethod

	// Data 数据（EventReceive / EventUnconnected）
	Data []byte

	// Request 连接请求（EventConnectionRequest）
	Request ConnectionRequest

	// Err 网络错误（EventNetworkError）
	Err error
}

// ConnectionRequest 待决的连接请求
//
// Accept 与 Reject 只能调用其一，且只能调用一次。
type ConnectionRequest interface {
	// Data 连接请求携带的数据，未携带时为 nil
	Data() []byte

	// Remote 请求来源
	Remote() netip.AddrPort

	// Accept 接受请求
	Accept()

	// Reject 拒绝请求
	Reject()
}
