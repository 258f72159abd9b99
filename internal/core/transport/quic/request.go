package quic

import (
	"net/netip"
	"sync/atomic"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-punchnet/pkg/interfaces"
)

// request 服务端待决的连接请求
type request struct {
	engine *Engine
	conn   *quic.Conn
	stream *quic.Stream
	data   []byte
	remote netip.AddrPort

	decided atomic.Bool
}

var _ interfaces.ConnectionRequest = (*request)(nil)

// Data 连接数据，未携带时为 nil
func (r *request) Data() []byte {
	return r.data
}

// Remote 请求来源
func (r *request) Remote() netip.AddrPort {
	return r.remote
}

// Accept 回写接受字节并登记对端
func (r *request) Accept() {
	if !r.decided.CompareAndSwap(false, true) {
		return
	}
	if _, err := r.stream.Write([]byte{acceptByte}); err != nil {
		log.Debug("接受连接失败", "remote", r.remote, "err", err)
		_ = r.conn.CloseWithError(codeNormal, "")
		return
	}
	r.engine.addPeer(r.conn, r.stream, r.remote)
}

// Reject 以 codeRejected 关闭连接
func (r *request) Reject() {
	if !r.decided.CompareAndSwap(false, true) {
		return
	}
	_ = r.conn.CloseWithError(codeRejected, "rejected")
}
