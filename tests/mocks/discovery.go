package mocks

import (
	"net/netip"

	"github.com/dep2p/go-punchnet/pkg/types"
)

// MockDiscoveryListener 模拟 DiscoveryListener，记录每次收到的快照
type MockDiscoveryListener struct {
	Updates [][]types.DiscoveredSession
}

// OnDiscoveredSessionsUpdated 记录快照
func (l *MockDiscoveryListener) OnDiscoveredSessionsUpdated(sessions []types.DiscoveredSession) {
	l.Updates = append(l.Updates, sessions)
}

// Last 返回最近一次快照
func (l *MockDiscoveryListener) Last() []types.DiscoveredSession {
	if len(l.Updates) == 0 {
		return nil
	}
	return l.Updates[len(l.Updates)-1]
}

// ============================================================================
//                              MockSocket
// ============================================================================

// MockSocket 模拟局域网发现套接字
type MockSocket struct {
	OpenFunc      func() error
	BroadcastFunc func(data []byte, port int) error

	Opened bool

	// Inbound 下次 Drain 交付的数据报
	Inbound []InboundDatagram

	// 调用记录
	OpenCalls      int
	CloseCalls     int
	BroadcastCalls []BroadcastCall
}

// InboundDatagram 入站数据报
type InboundDatagram struct {
	Data []byte
	From netip.AddrPort
}

// BroadcastCall 记录 Broadcast 调用
type BroadcastCall struct {
	Data []byte
	Port int
}

// Open 打开
func (s *MockSocket) Open() error {
	s.OpenCalls++
	if s.OpenFunc != nil {
		if err := s.OpenFunc(); err != nil {
			return err
		}
	}
	s.Opened = true
	return nil
}

// Close 关闭
func (s *MockSocket) Close() error {
	s.CloseCalls++
	s.Opened = false
	return nil
}

// Broadcast 记录广播
func (s *MockSocket) Broadcast(data []byte, port int) error {
	s.BroadcastCalls = append(s.BroadcastCalls, BroadcastCall{Data: append([]byte(nil), data...), Port: port})
	if s.BroadcastFunc != nil {
		return s.BroadcastFunc(data, port)
	}
	return nil
}

// Drain 交付并清空 Inbound
func (s *MockSocket) Drain(fn func(data []byte, from netip.AddrPort)) {
	inbound := s.Inbound
	s.Inbound = nil
	for _, d := range inbound {
		fn(d.Data, d.From)
	}
}

// Deliver 排入一个入站数据报
func (s *MockSocket) Deliver(data []byte, from netip.AddrPort) {
	s.Inbound = append(s.Inbound, InboundDatagram{Data: data, From: from})
}
