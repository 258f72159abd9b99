package punch

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/dep2p/go-punchnet/internal/core/nat/natproto"
	"github.com/dep2p/go-punchnet/internal/core/nat/natpunch"
)

// Registrar 服务端向中继的周期性登记
type Registrar struct {
	sender    natpunch.Sender
	relay     netip.AddrPort
	interval  time.Duration
	localPort func() int
	localIP   func() (netip.Addr, error)

	lastRegister time.Time
}

// NewRegistrar 创建登记器，localIP 返回本机局域网地址
func NewRegistrar(sender natpunch.Sender, relay netip.AddrPort, interval time.Duration, localPort func() int, localIP func() (netip.Addr, error)) *Registrar {
	return &Registrar{
		sender:    sender,
		relay:     relay,
		interval:  interval,
		localPort: localPort,
		localIP:   localIP,
	}
}

// Register 发送一次登记包
func (r *Registrar) Register() error {
	ip, err := r.localIP()
	if err != nil {
		return fmt.Errorf("determine local address: %w", err)
	}

	packet := &natproto.RegisterPacket{Internal: netip.AddrPortFrom(ip, uint16(r.localPort()))}
	if err := r.sender.SendUnconnected(packet.Marshal(), r.relay); err != nil {
		return fmt.Errorf("send registration: %w", err)
	}
	log.Debug("已向中继登记", "relay", r.relay, "internal", packet.Internal)
	return nil
}

// ResetHeartbeat 以 now 作为最近一次登记时间
func (r *Registrar) ResetHeartbeat(now time.Time) {
	r.lastRegister = now
}

// Poll 到期时重新登记并重置计时，返回是否发生了登记
func (r *Registrar) Poll(now time.Time) bool {
	if now.Before(r.lastRegister.Add(r.interval)) {
		return false
	}

	log.Debug("重新登记到中继", "relay", r.relay)
	if err := r.Register(); err != nil {
		log.Warn("登记失败", "relay", r.relay, "err", err)
	}
	r.ResetHeartbeat(now)
	return true
}

// Relay 中继端点
func (r *Registrar) Relay() netip.AddrPort {
	return r.relay
}
