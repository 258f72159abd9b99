package quic

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-punchnet/pkg/interfaces"
	"github.com/dep2p/go-punchnet/pkg/types"
)

// 应用错误码
const (
	codeNormal   quic.ApplicationErrorCode = 0x0
	codeRejected quic.ApplicationErrorCode = 0x1
)

// peer 已建立的连接
type peer struct {
	id     types.PeerID
	conn   *quic.Conn
	stream *quic.Stream
	remote netip.AddrPort

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// sendReliable 在控制流上写入一帧
func (p *peer) sendReliable(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return writeFrame(p.stream, data)
}

// readLoop 读取可靠帧直到连接关闭
func (p *peer) readLoop(e *Engine) {
	for {
		data, err := readFrame(p.stream)
		if err != nil {
			e.peerClosed(p, classify(err, types.DisconnectRemoteConnectionClose))
			return
		}
		e.events.push(interfaces.Event{
			Kind:    interfaces.EventReceive,
			Peer:    p.id,
			HasPeer: true,
			Remote:  p.remote,
			Method:  types.DeliveryReliableOrdered,
			Data:    data,
		})
	}
}

// datagramLoop 读取不可靠数据报直到连接关闭
func (p *peer) datagramLoop(e *Engine) {
	ctx := p.conn.Context()
	for {
		data, err := p.conn.ReceiveDatagram(ctx)
		if err != nil {
			return
		}
		e.events.push(interfaces.Event{
			Kind:    interfaces.EventReceive,
			Peer:    p.id,
			HasPeer: true,
			Remote:  p.remote,
			Method:  types.DeliveryUnreliable,
			Data:    data,
		})
	}
}

// classify 将 quic-go 错误映射为断开原因
func classify(err error, fallback types.DisconnectReason) types.DisconnectReason {
	var (
		appErr   *quic.ApplicationError
		idleErr  *quic.IdleTimeoutError
		hsErr    *quic.HandshakeTimeoutError
		netErr   net.Error
		closeErr *quic.TransportError
	)

	switch {
	case errors.As(err, &appErr):
		if appErr.ErrorCode == codeRejected {
			return types.DisconnectConnectionRejected
		}
		if appErr.Remote {
			return types.DisconnectRemoteConnectionClose
		}
		return types.DisconnectPeerCalled
	case errors.As(err, &idleErr):
		return types.DisconnectTimeout
	case errors.As(err, &hsErr):
		return types.DisconnectConnectionFailed
	case errors.As(err, &closeErr):
		return types.DisconnectInvalidProtocol
	case errors.Is(err, context.DeadlineExceeded):
		return types.DisconnectTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return types.DisconnectTimeout
	case errors.Is(err, quic.ErrServerClosed), errors.Is(err, quic.ErrTransportClosed), errors.Is(err, net.ErrClosed):
		return types.DisconnectPeerCalled
	default:
		return fallback
	}
}

// toAddrPort 将 net.Addr 转换为 netip.AddrPort
func toAddrPort(addr net.Addr) netip.AddrPort {
	if ua, ok := addr.(*net.UDPAddr); ok {
		ap := ua.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return netip.AddrPort{}
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// dialReason 握手阶段的失败原因，超时视为连接失败
func dialReason(err error) types.DisconnectReason {
	reason := classify(err, types.DisconnectConnectionFailed)
	if reason == types.DisconnectTimeout {
		return types.DisconnectConnectionFailed
	}
	return reason
}
