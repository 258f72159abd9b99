// Package natpunch 实现引荐式 UDP 打洞的端侧协议
//
// 流程：
//  1. 客户端向中继发送 IntroduceRequest（携带自身内网端点和目标主机令牌）
//  2. 中继向主机和客户端各下发一条 Introduce，内容为对方的内网/公网端点
//  3. 双方收到 Introduce 后同时向对方两个端点发送 Punch
//  4. 任一 Punch 到达即表示该路径已打通，排队为一次引荐成功
//
// 成功事件在 PollEvents 中按到达顺序交付。Module 不是并发安全的。
package natpunch

import (
	"errors"
	"net/netip"

	"github.com/dep2p/go-punchnet/internal/core/nat/natproto"
	"github.com/dep2p/go-punchnet/internal/core/wire"
	"github.com/dep2p/go-punchnet/internal/util/logger"
	"github.com/dep2p/go-punchnet/pkg/types"
)

var log = logger.Logger("nat.natpunch")

// ErrNoToken 引荐令牌为空
var ErrNoToken = errors.New("natpunch: empty token")

// Sender 无连接数据报发送方
type Sender interface {
	SendUnconnected(data []byte, to netip.AddrPort) error
}

// Listener 引荐成功的接收方
type Listener interface {
	OnNatIntroductionSuccess(target netip.AddrPort, addrType types.NatAddressType, token string)
}

// ListenerFunc 函数形式的 Listener
type ListenerFunc func(target netip.AddrPort, addrType types.NatAddressType, token string)

// OnNatIntroductionSuccess 实现 Listener
func (f ListenerFunc) OnNatIntroductionSuccess(target netip.AddrPort, addrType types.NatAddressType, token string) {
	f(target, addrType, token)
}

type success struct {
	target   netip.AddrPort
	addrType types.NatAddressType
	token    string
}

// Module 打洞协议处理器
type Module struct {
	sender        Sender
	localEndpoint func() netip.AddrPort
	relay         netip.AddrPort

	pending []success
}

// New 创建处理器，localEndpoint 返回本机内网端点
func New(sender Sender, localEndpoint func() netip.AddrPort) *Module {
	return &Module{sender: sender, localEndpoint: localEndpoint}
}

// Trust 只接受来自 relay 的 Introduce；未设置时接受任意来源
func (m *Module) Trust(relay netip.AddrPort) {
	m.relay = relay
}

// SendIntroduceRequest 请求中继引荐到 token 标识的主机
func (m *Module) SendIntroduceRequest(relay netip.AddrPort, token string) error {
	if token == "" {
		return ErrNoToken
	}
	req := &natproto.IntroduceRequest{Internal: m.localEndpoint(), Token: token}
	log.Debug("发送引荐请求", "relay", relay, "token", token, "internal", req.Internal)
	return m.sender.SendUnconnected(req.Marshal(), relay)
}

// Handle 处理打洞相关数据报，返回是否已消费
func (m *Module) Handle(data []byte, from netip.AddrPort) bool {
	kind, ok := wire.KindOf(data)
	if !ok {
		return false
	}

	switch kind {
	case wire.KindNatIntroduce:
		m.handleIntroduce(data, from)
		return true
	case wire.KindNatPunch:
		m.handlePunch(data, from)
		return true
	default:
		return false
	}
}

func (m *Module) handleIntroduce(data []byte, from netip.AddrPort) {
	if m.relay.IsValid() && from != m.relay {
		log.Debug("忽略非中继来源的引荐", "from", from)
		return
	}

	intro, err := natproto.UnmarshalIntroduce(data)
	if err != nil {
		log.Debug("引荐解码失败", "from", from, "err", err)
		return
	}

	log.Debug("收到引荐，开始打洞", "internal", intro.Internal, "external", intro.External, "token", intro.Token)

	if intro.Internal.IsValid() {
		punch := &natproto.Punch{Token: intro.Token}
		if err := m.sender.SendUnconnected(punch.Marshal(), intro.Internal); err != nil {
			log.Debug("内网打洞包发送失败", "to", intro.Internal, "err", err)
		}
	}
	if intro.External.IsValid() && intro.External != intro.Internal {
		punch := &natproto.Punch{Token: intro.Token, External: true}
		if err := m.sender.SendUnconnected(punch.Marshal(), intro.External); err != nil {
			log.Debug("公网打洞包发送失败", "to", intro.External, "err", err)
		}
	}
}

func (m *Module) handlePunch(data []byte, from netip.AddrPort) {
	punch, err := natproto.UnmarshalPunch(data)
	if err != nil {
		log.Debug("打洞包解码失败", "from", from, "err", err)
		return
	}

	addrType := types.NatAddressInternal
	if punch.External {
		addrType = types.NatAddressExternal
	}
	m.pending = append(m.pending, success{target: from, addrType: addrType, token: punch.Token})
}

// PollEvents 交付排队的引荐成功事件
func (m *Module) PollEvents(l Listener) {
	if len(m.pending) == 0 {
		return
	}
	pending := m.pending
	m.pending = nil
	for _, s := range pending {
		l.OnNatIntroductionSuccess(s.target, s.addrType, s.token)
	}
}
