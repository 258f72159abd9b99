package stun

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/pion/stun"

	"github.com/dep2p/go-punchnet/internal/util/logger"
)

var log = logger.Logger("nat.stun")

// DefaultPort STUN 默认端口
const DefaultPort = 3478

// Errors
var (
	ErrInvalidServer = &STUNError{Message: "invalid server address"}
	ErrNoMapped      = &STUNError{Message: "no mapped address in response"}
)

// STUNError STUN 错误
type STUNError struct {
	Message string
	Cause   error
}

func (e *STUNError) Error() string {
	if e.Cause != nil {
		return "stun: " + e.Message + ": " + e.Cause.Error()
	}
	return "stun: " + e.Message
}

func (e *STUNError) Unwrap() error {
	return e.Cause
}

// Is 按 Message 比较，便于 errors.Is 匹配包级错误
func (e *STUNError) Is(target error) bool {
	var t *STUNError
	return errors.As(target, &t) && t.Message == e.Message
}

// ResolveServer 解析 "host[:port]"，缺省端口为 3478
func ResolveServer(server string) (netip.AddrPort, error) {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, fmt.Sprint(DefaultPort))
	}
	addr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		return netip.AddrPort{}, &STUNError{Message: ErrInvalidServer.Message, Cause: err}
	}
	ap := addr.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}

// IsMessage 判断数据报是否是 STUN 消息
func IsMessage(data []byte) bool {
	return stun.IsMessage(data)
}

// ============================================================================
//                              Prober
// ============================================================================

// Prober 公网端点探测器
type Prober struct {
	txID     [stun.TransactionIDSize]byte
	inflight bool
	mapped   netip.AddrPort
}

// NewProber 创建探测器
func NewProber() *Prober {
	return &Prober{}
}

// Request 构造 Binding 请求并记住事务 ID，之前的请求作废
func (p *Prober) Request() ([]byte, error) {
	msg, err := stun.Build(stun.TransactionID, stun.BindingRequest, stun.Fingerprint)
	if err != nil {
		return nil, &STUNError{Message: "build request", Cause: err}
	}
	p.txID = msg.TransactionID
	p.inflight = true
	return msg.Raw, nil
}

// Handle 处理 Binding 响应，只接受与最近请求匹配的成功响应
func (p *Prober) Handle(data []byte) (netip.AddrPort, bool) {
	if !p.inflight || !stun.IsMessage(data) {
		return netip.AddrPort{}, false
	}

	res := new(stun.Message)
	res.Raw = append([]byte(nil), data...)
	if err := res.Decode(); err != nil {
		log.Debug("STUN 响应解码失败", "err", err)
		return netip.AddrPort{}, false
	}
	if res.TransactionID != p.txID || res.Type != stun.BindingSuccess {
		return netip.AddrPort{}, false
	}

	ep, err := mappedAddress(res)
	if err != nil {
		log.Debug("STUN 响应缺少映射地址", "err", err)
		return netip.AddrPort{}, false
	}

	p.inflight = false
	if ep != p.mapped {
		log.Info("公网端点", "endpoint", ep)
	}
	p.mapped = ep
	return ep, true
}

// Mapped 返回最近一次探测到的公网端点
func (p *Prober) Mapped() (netip.AddrPort, bool) {
	return p.mapped, p.mapped.IsValid()
}

func mappedAddress(res *stun.Message) (netip.AddrPort, error) {
	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(res); err == nil {
		return toAddrPort(xorAddr.IP, xorAddr.Port)
	}

	// 旧版服务器只返回 MAPPED-ADDRESS
	var mappedAddr stun.MappedAddress
	if err := mappedAddr.GetFrom(res); err != nil {
		return netip.AddrPort{}, &STUNError{Message: ErrNoMapped.Message, Cause: err}
	}
	return toAddrPort(mappedAddr.IP, mappedAddr.Port)
}

func toAddrPort(ip net.IP, port int) (netip.AddrPort, error) {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok || port <= 0 || port > 65535 {
		return netip.AddrPort{}, ErrNoMapped
	}
	return netip.AddrPortFrom(addr.Unmap(), uint16(port)), nil
}
