package natproto

import (
	"fmt"
	"net/netip"

	"github.com/dep2p/go-punchnet/internal/core/wire"
)

// RegisterPacket 主机登记包，携带主机的内网端点
type RegisterPacket struct {
	Internal netip.AddrPort
}

// Serialize 写入 [string ip][int32 port]
func (p *RegisterPacket) Serialize(w *wire.Writer) {
	w.PutString(p.Internal.Addr().String())
	w.PutInt32(int32(p.Internal.Port()))
}

// Deserialize 读取 [string ip][int32 port]
func (p *RegisterPacket) Deserialize(r *wire.Reader) error {
	host, err := r.GetString()
	if err != nil {
		return fmt.Errorf("read address: %w", err)
	}
	port, err := r.GetInt32()
	if err != nil {
		return fmt.Errorf("read port: %w", err)
	}
	if port < 0 || port > 65535 {
		return ErrInvalidPort
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, host)
	}
	p.Internal = netip.AddrPortFrom(ip, uint16(port))
	return nil
}

// Marshal 编码为完整数据报
func (p *RegisterPacket) Marshal() []byte {
	w := wire.NewWriter(wire.KindNatRegister)
	p.Serialize(w)
	return w.Bytes()
}

// UnmarshalRegister 解码登记数据报
func UnmarshalRegister(data []byte) (*RegisterPacket, error) {
	payload, err := wire.Frame(data, wire.KindNatRegister)
	if err != nil {
		return nil, err
	}
	p := &RegisterPacket{}
	if err := p.Deserialize(wire.NewReader(payload)); err != nil {
		return nil, err
	}
	return p, nil
}
