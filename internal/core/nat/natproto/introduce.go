package natproto

import (
	"fmt"
	"net/netip"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-punchnet/internal/core/wire"
)

// ============================================================================
//                              消息定义
// ============================================================================

// IntroduceRequest 客户端请求中继引荐到 Token 标识的主机
//
//	1: internal (string)  客户端内网端点
//	2: token    (string)  主机标识 "ip:port"
type IntroduceRequest struct {
	Internal netip.AddrPort
	Token    string
}

// Introduce 中继下发给双方的引荐，端点属于对方
//
//	1: internal (string)
//	2: external (string)
//	3: token    (string)
type Introduce struct {
	Internal netip.AddrPort
	External netip.AddrPort
	Token    string
}

// Punch 打洞包，External 表示发往对方的公网端点
//
//	1: token    (string)
//	2: external (bool)
type Punch struct {
	Token    string
	External bool
}

// ============================================================================
//                              编码
// ============================================================================

// Marshal 编码为完整数据报
func (m *IntroduceRequest) Marshal() []byte {
	b := []byte{byte(wire.KindNatIntroduceRequest)}
	b = appendEndpoint(b, 1, m.Internal)
	b = appendString(b, 2, m.Token)
	return b
}

// Marshal 编码为完整数据报
func (m *Introduce) Marshal() []byte {
	b := []byte{byte(wire.KindNatIntroduce)}
	b = appendEndpoint(b, 1, m.Internal)
	b = appendEndpoint(b, 2, m.External)
	b = appendString(b, 3, m.Token)
	return b
}

// Marshal 编码为完整数据报
func (m *Punch) Marshal() []byte {
	b := []byte{byte(wire.KindNatPunch)}
	b = appendString(b, 1, m.Token)
	if m.External {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendEndpoint(b []byte, num protowire.Number, ep netip.AddrPort) []byte {
	if !ep.IsValid() {
		return b
	}
	return appendString(b, num, ep.String())
}

// ============================================================================
//                              解码
// ============================================================================

// UnmarshalIntroduceRequest 解码引荐请求
func UnmarshalIntroduceRequest(data []byte) (*IntroduceRequest, error) {
	payload, err := wire.Frame(data, wire.KindNatIntroduceRequest)
	if err != nil {
		return nil, err
	}
	m := &IntroduceRequest{}
	err = consumeFields(payload, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeEndpoint(b, &m.Internal)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &m.Token)
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	if m.Token == "" {
		return nil, ErrMissingToken
	}
	return m, nil
}

// UnmarshalIntroduce 解码引荐
func UnmarshalIntroduce(data []byte) (*Introduce, error) {
	payload, err := wire.Frame(data, wire.KindNatIntroduce)
	if err != nil {
		return nil, err
	}
	m := &Introduce{}
	err = consumeFields(payload, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeEndpoint(b, &m.Internal)
		case num == 2 && typ == protowire.BytesType:
			return consumeEndpoint(b, &m.External)
		case num == 3 && typ == protowire.BytesType:
			return consumeString(b, &m.Token)
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	if !m.Internal.IsValid() && !m.External.IsValid() {
		return nil, ErrInvalidEndpoint
	}
	return m, nil
}

// UnmarshalPunch 解码打洞包
func UnmarshalPunch(data []byte) (*Punch, error) {
	payload, err := wire.Frame(data, wire.KindNatPunch)
	if err != nil {
		return nil, err
	}
	m := &Punch{}
	err = consumeFields(payload, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &m.Token)
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.External = v != 0
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// consumeFields 遍历字段，field 返回 -1 表示未知字段由此处跳过
func consumeFields(b []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
		}
		b = b[n:]
	}
	return nil
}

func consumeString(b []byte, dst *string) (int, error) {
	s, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = s
	return n, nil
}

func consumeEndpoint(b []byte, dst *netip.AddrPort) (int, error) {
	var s string
	n, err := consumeString(b, &s)
	if err != nil {
		return 0, err
	}
	ep, err := netip.ParseAddrPort(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidEndpoint, s)
	}
	*dst = ep
	return n, nil
}
