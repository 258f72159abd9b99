package config

import (
	"fmt"
	"time"
)

// DiscoveryConfig 局域网发现配置
type DiscoveryConfig struct {
	// Enable 客户端是否运行发现服务
	Enable bool `json:"enable"`

	// Secret 共享密钥
	Secret int32 `json:"secret"`

	// StartPort, EndPort 探测端口范围（闭区间）
	StartPort int `json:"start_port"`
	EndPort   int `json:"end_port"`

	ProbeInterval   Duration `json:"probe_interval"`
	PruneInterval   Duration `json:"prune_interval"`
	SessionLifetime Duration `json:"session_lifetime"`
}

// DefaultDiscoveryConfig 返回默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		Enable:          true,
		Secret:          5555,
		StartPort:       DefaultListenPort,
		EndPort:         DefaultListenPort,
		ProbeInterval:   Duration(2 * time.Second),
		PruneInterval:   Duration(time.Second),
		SessionLifetime: Duration(5 * time.Second),
	}
}

// Validate 验证发现配置
func (c DiscoveryConfig) Validate() error {
	if c.StartPort < 1 || c.EndPort > 65535 || c.StartPort > c.EndPort {
		return fmt.Errorf("%w: discovery port range %d-%d", ErrInvalidConfig, c.StartPort, c.EndPort)
	}
	if c.ProbeInterval <= 0 || c.PruneInterval <= 0 || c.SessionLifetime <= 0 {
		return fmt.Errorf("%w: discovery intervals must be positive", ErrInvalidConfig)
	}
	return nil
}
