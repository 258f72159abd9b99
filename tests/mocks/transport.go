package mocks

import (
	"net/netip"

	"github.com/dep2p/go-punchnet/pkg/interfaces"
	"github.com/dep2p/go-punchnet/pkg/types"
)

// MockEngine 模拟 Engine 接口实现
type MockEngine struct {
	// 可覆盖的方法
	StartFunc           func(port int) error
	ConnectFunc         func(remote netip.AddrPort, payload []byte) error
	SendFunc            func(peer types.PeerID, data []byte, method types.DeliveryMethod) error
	SendUnconnectedFunc func(data []byte, to netip.AddrPort) error

	// 状态
	Running  bool
	Port     int
	MTUValue int

	// 待交付事件
	Events []interfaces.Event

	// 调用记录
	StartCalls       []int
	StopCalls        int
	ConnectCalls     []ConnectCall
	DisconnectCalls  []types.PeerID
	SendCalls        []SendCall
	UnconnectedCalls []UnconnectedCall
	ForceUpdateCalls int
}

// ConnectCall 记录 Connect 调用
type ConnectCall struct {
	Remote  netip.AddrPort
	Payload []byte
}

// SendCall 记录 Send 调用
type SendCall struct {
	Peer   types.PeerID
	Data   []byte
	Method types.DeliveryMethod
}

// UnconnectedCall 记录 SendUnconnected 调用
type UnconnectedCall struct {
	Data []byte
	To   netip.AddrPort
}

// NewMockEngine 创建带有默认值的 MockEngine
func NewMockEngine() *MockEngine {
	return &MockEngine{MTUValue: 1200}
}

// Start 启动
func (m *MockEngine) Start(port int) error {
	m.StartCalls = append(m.StartCalls, port)
	if m.StartFunc != nil {
		if err := m.StartFunc(port); err != nil {
			return err
		}
	}
	m.Running = true
	if port == 0 {
		port = 50000
	}
	m.Port = port
	return nil
}

// Stop 停止
func (m *MockEngine) Stop() error {
	m.StopCalls++
	m.Running = false
	return nil
}

// IsRunning 是否运行
func (m *MockEngine) IsRunning() bool {
	return m.Running
}

// LocalPort 本地端口
func (m *MockEngine) LocalPort() int {
	return m.Port
}

// Connect 发起连接
func (m *MockEngine) Connect(remote netip.AddrPort, payload []byte) error {
	m.ConnectCalls = append(m.ConnectCalls, ConnectCall{Remote: remote, Payload: payload})
	if m.ConnectFunc != nil {
		return m.ConnectFunc(remote, payload)
	}
	return nil
}

// Disconnect 断开对端
func (m *MockEngine) Disconnect(peer types.PeerID) {
	m.DisconnectCalls = append(m.DisconnectCalls, peer)
}

// Send 发送数据
func (m *MockEngine) Send(peer types.PeerID, data []byte, method types.DeliveryMethod) error {
	m.SendCalls = append(m.SendCalls, SendCall{Peer: peer, Data: append([]byte(nil), data...), Method: method})
	if m.SendFunc != nil {
		return m.SendFunc(peer, data, method)
	}
	return nil
}

// SendUnconnected 发送无连接数据报
func (m *MockEngine) SendUnconnected(data []byte, to netip.AddrPort) error {
	m.UnconnectedCalls = append(m.UnconnectedCalls, UnconnectedCall{Data: append([]byte(nil), data...), To: to})
	if m.SendUnconnectedFunc != nil {
		return m.SendUnconnectedFunc(data, to)
	}
	return nil
}

// MTU 返回 MTUValue
func (m *MockEngine) MTU(types.PeerID) int {
	return m.MTUValue
}

// PollEvents 交付并清空事件队列
func (m *MockEngine) PollEvents(fn func(interfaces.Event)) {
	events := m.Events
	m.Events = nil
	for _, ev := range events {
		fn(ev)
	}
}

// ForceUpdate 记录调用
func (m *MockEngine) ForceUpdate() {
	m.ForceUpdateCalls++
}

// Push 排入事件
func (m *MockEngine) Push(ev interfaces.Event) {
	m.Events = append(m.Events, ev)
}

// UnconnectedTo 返回发往 to 的所有无连接数据报
func (m *MockEngine) UnconnectedTo(to netip.AddrPort) [][]byte {
	var out [][]byte
	for _, c := range m.UnconnectedCalls {
		if c.To == to {
			out = append(out, c.Data)
		}
	}
	return out
}

// ============================================================================
//                              MockConnectionRequest
// ============================================================================

// MockConnectionRequest 模拟 ConnectionRequest
type MockConnectionRequest struct {
	DataValue   []byte
	RemoteValue netip.AddrPort

	Accepted bool
	Rejected bool
}

// Data 请求数据
func (r *MockConnectionRequest) Data() []byte {
	return r.DataValue
}

// Remote 请求来源
func (r *MockConnectionRequest) Remote() netip.AddrPort {
	return r.RemoteValue
}

// Accept 接受
func (r *MockConnectionRequest) Accept() {
	r.Accepted = true
}

// Reject 拒绝
func (r *MockConnectionRequest) Reject() {
	r.Rejected = true
}
