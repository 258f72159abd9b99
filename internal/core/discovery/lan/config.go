package lan

import (
	"errors"
	"fmt"
	"net/netip"
	"time"
)

// 默认值
const (
	DefaultSecret          int32 = 5555
	DefaultPort                  = 7777
	DefaultProbeInterval         = 2 * time.Second
	DefaultPruneInterval         = 1 * time.Second
	DefaultSessionLifetime       = 5 * time.Second
)

var (
	// ErrInvalidPortRange 端口范围无效
	ErrInvalidPortRange = errors.New("lan: invalid port range")

	// ErrInvalidInterval 时间间隔无效
	ErrInvalidInterval = errors.New("lan: interval must be positive")
)

// Config 发现服务配置
type Config struct {
	// Secret 共享密钥，只接受密钥一致的应答
	Secret int32

	// StartPort, EndPort 探测端口范围（闭区间）
	StartPort int
	EndPort   int

	// ProbeInterval 探测间隔
	ProbeInterval time.Duration

	// PruneInterval 过期清理间隔
	PruneInterval time.Duration

	// SessionLifetime 会话在最后一次应答后的存活时间
	SessionLifetime time.Duration

	// BroadcastAddr 广播地址
	BroadcastAddr netip.Addr
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Secret:          DefaultSecret,
		StartPort:       DefaultPort,
		EndPort:         DefaultPort,
		ProbeInterval:   DefaultProbeInterval,
		PruneInterval:   DefaultPruneInterval,
		SessionLifetime: DefaultSessionLifetime,
		BroadcastAddr:   netip.AddrFrom4([4]byte{255, 255, 255, 255}),
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.StartPort < 1 || c.EndPort > 65535 || c.StartPort > c.EndPort {
		return fmt.Errorf("%w: %d-%d", ErrInvalidPortRange, c.StartPort, c.EndPort)
	}
	if c.ProbeInterval <= 0 || c.PruneInterval <= 0 || c.SessionLifetime <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

func (c Config) broadcastAddr() netip.Addr {
	if c.BroadcastAddr.IsValid() {
		return c.BroadcastAddr
	}
	return netip.AddrFrom4([4]byte{255, 255, 255, 255})
}
