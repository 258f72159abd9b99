package mocks

import (
	"net/netip"

	"github.com/dep2p/go-punchnet/pkg/interfaces"
	"github.com/dep2p/go-punchnet/pkg/types"
)

// MockPeerHandler 模拟 PeerHandler 接口实现
type MockPeerHandler struct {
	// OnConnectRequestFunc 决定是否接受，未设置时全部接受
	OnConnectRequestFunc func(payload []byte, remote netip.AddrPort) bool

	// OnConnectFailedFunc 在记录之后调用
	OnConnectFailedFunc func(reason types.ConnectFailedReason)

	// 调用记录
	RequestCalls       []RequestCall
	ConnectedCalls     []interfaces.Connection
	DisconnectedCalls  []DisconnectedCall
	ReceiveCalls       []ReceiveCall
	ConnectFailedCalls []types.ConnectFailedReason
}

// RequestCall 记录 OnConnectRequest 调用
type RequestCall struct {
	Payload []byte
	Remote  netip.AddrPort
}

// DisconnectedCall 记录 OnDisconnected 调用
type DisconnectedCall struct {
	Conn   interfaces.Connection
	Reason types.TransportDisconnectReason
}

// ReceiveCall 记录 OnReceive 调用（数据已复制）
type ReceiveCall struct {
	Conn interfaces.Connection
	Data []byte
}

// NewMockPeerHandler 创建 MockPeerHandler
func NewMockPeerHandler() *MockPeerHandler {
	return &MockPeerHandler{}
}

// OnConnectRequest 连接请求
func (h *MockPeerHandler) OnConnectRequest(payload []byte, remote netip.AddrPort) bool {
	h.RequestCalls = append(h.RequestCalls, RequestCall{Payload: payload, Remote: remote})
	if h.OnConnectRequestFunc != nil {
		return h.OnConnectRequestFunc(payload, remote)
	}
	return true
}

// OnConnected 连接建立
func (h *MockPeerHandler) OnConnected(conn interfaces.Connection) {
	h.ConnectedCalls = append(h.ConnectedCalls, conn)
}

// OnDisconnected 连接断开
func (h *MockPeerHandler) OnDisconnected(conn interfaces.Connection, reason types.TransportDisconnectReason) {
	h.DisconnectedCalls = append(h.DisconnectedCalls, DisconnectedCall{Conn: conn, Reason: reason})
}

// OnReceive 收到数据
func (h *MockPeerHandler) OnReceive(conn interfaces.Connection, data []byte) {
	h.ReceiveCalls = append(h.ReceiveCalls, ReceiveCall{Conn: conn, Data: append([]byte(nil), data...)})
}

// OnConnectFailed 连接失败
func (h *MockPeerHandler) OnConnectFailed(reason types.ConnectFailedReason) {
	h.ConnectFailedCalls = append(h.ConnectFailedCalls, reason)
	if h.OnConnectFailedFunc != nil {
		h.OnConnectFailedFunc(reason)
	}
}
