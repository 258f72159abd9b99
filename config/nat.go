package config

import (
	"fmt"
	"net/netip"
	"time"
)

// 端口映射方式
const (
	PortMappingNone   = ""
	PortMappingNATPMP = "natpmp"
	PortMappingUPnP   = "upnp"
)

// NATConfig 中继与打洞配置
type NATConfig struct {
	// RelayAddress 会合中继地址，必须是字面 IP
	RelayAddress string `json:"relay_address"`
	RelayPort    int    `json:"relay_port"`

	// PunchHeartbeat 服务端重新登记间隔
	PunchHeartbeat Duration `json:"punch_heartbeat"`

	// PunchTimeout 客户端等待引荐的时长，超时后直接连接
	PunchTimeout Duration `json:"punch_timeout"`

	// StunServer 可选的 STUN 服务器（host:port）
	StunServer string `json:"stun_server,omitempty"`

	// PortMapping 服务端端口映射：""、"natpmp" 或 "upnp"
	PortMapping string `json:"port_mapping,omitempty"`
}

// DefaultNATConfig 返回默认 NAT 配置
func DefaultNATConfig() NATConfig {
	return NATConfig{
		RelayAddress:   "127.0.0.1",
		RelayPort:      6000,
		PunchHeartbeat: Duration(5 * time.Second),
		PunchTimeout:   Duration(3 * time.Second),
	}
}

// Validate 验证 NAT 配置
func (c NATConfig) Validate() error {
	if _, err := netip.ParseAddr(c.RelayAddress); err != nil {
		return fmt.Errorf("%w: relay address %q is not an IP", ErrInvalidConfig, c.RelayAddress)
	}
	if c.RelayPort < 1 || c.RelayPort > 65535 {
		return fmt.Errorf("%w: relay port %d", ErrInvalidConfig, c.RelayPort)
	}
	if c.PunchHeartbeat <= 0 || c.PunchTimeout <= 0 {
		return fmt.Errorf("%w: punch intervals must be positive", ErrInvalidConfig)
	}
	switch c.PortMapping {
	case PortMappingNone, PortMappingNATPMP, PortMappingUPnP:
	default:
		return fmt.Errorf("%w: unknown port mapping %q", ErrInvalidConfig, c.PortMapping)
	}
	return nil
}
