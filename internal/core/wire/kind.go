package wire

// Kind 无连接数据报类型
type Kind byte

const (
	// KindDiscoveryProbe 局域网发现探测
	KindDiscoveryProbe Kind = 0x01
	// KindDiscoveryReply 局域网发现应答
	KindDiscoveryReply Kind = 0x02
	// KindNatRegister 主机向中继登记
	KindNatRegister Kind = 0x03
	// KindNatIntroduceRequest 客户端请求引荐
	KindNatIntroduceRequest Kind = 0x04
	// KindNatIntroduce 中继下发引荐
	KindNatIntroduce Kind = 0x05
	// KindNatPunch 打洞包
	KindNatPunch Kind = 0x06
)

// String 返回类型名称
func (k Kind) String() string {
	switch k {
	case KindDiscoveryProbe:
		return "discovery-probe"
	case KindDiscoveryReply:
		return "discovery-reply"
	case KindNatRegister:
		return "nat-register"
	case KindNatIntroduceRequest:
		return "nat-introduce-request"
	case KindNatIntroduce:
		return "nat-introduce"
	case KindNatPunch:
		return "nat-punch"
	default:
		return "unknown"
	}
}

// KindOf 返回数据报类型，空数据报返回 false
func KindOf(data []byte) (Kind, bool) {
	if len(data) == 0 {
		return 0, false
	}
	k := Kind(data[0])
	return k, k >= KindDiscoveryProbe && k <= KindNatPunch
}

// Frame 去掉类型字节后返回载荷，类型不符返回 ErrUnexpectedKind
func Frame(data []byte, want Kind) ([]byte, error) {
	k, ok := KindOf(data)
	if !ok || k != want {
		return nil, ErrUnexpectedKind
	}
	return data[1:], nil
}
