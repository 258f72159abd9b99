// Package config 提供 punchnet 的用户配置
//
// 配置按模块分组，每组在独立文件中定义：
//   - Discovery: 局域网发现
//   - Transport: 投递引擎与轮询节拍
//   - NAT: 中继、打洞、STUN 与端口映射
//   - Metrics: prometheus 端点
//
// 加载顺序：默认值 → JSON 文件 → 环境变量（PUNCHNET_*）→ 命令行参数。
//
//	cfg, err := config.LoadFile("punchnet.json")
//	if err != nil {
//	    return err
//	}
//	config.ApplyEnv(cfg, os.LookupEnv)
package config

import (
	"fmt"

	"github.com/dep2p/go-punchnet/pkg/types"
)

// 默认值
const (
	DefaultRole       = "client"
	DefaultListenPort = 7777
	DefaultMaxPlayers = 16
	DefaultHostName   = "punchnet"
)

// Config 完整配置
type Config struct {
	// Role 角色：client / server
	Role string `json:"role"`

	// ListenPort 服务端监听端口
	ListenPort int `json:"listen_port"`

	// MaxPlayers 连接池容量
	MaxPlayers int `json:"max_players"`

	// HostName 服务端应答局域网发现时使用的名称
	HostName string `json:"host_name"`

	// Discovery 局域网发现配置
	Discovery DiscoveryConfig `json:"discovery"`

	// Transport 引擎配置
	Transport TransportConfig `json:"transport"`

	// NAT 中继与打洞配置
	NAT NATConfig `json:"nat"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// ListenAddr promhttp 监听地址，空表示不暴露
	ListenAddr string `json:"listen_addr,omitempty"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Role:       DefaultRole,
		ListenPort: DefaultListenPort,
		MaxPlayers: DefaultMaxPlayers,
		HostName:   DefaultHostName,
		Discovery:  DefaultDiscoveryConfig(),
		Transport:  DefaultTransportConfig(),
		NAT:        DefaultNATConfig(),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if _, ok := types.ParseRole(c.Role); !ok {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidConfig, c.Role)
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("%w: listen port %d", ErrInvalidConfig, c.ListenPort)
	}
	if c.MaxPlayers < 1 {
		return fmt.Errorf("%w: max players must be positive", ErrInvalidConfig)
	}
	if err := c.Discovery.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	return c.NAT.Validate()
}

// ParsedRole 返回解析后的角色，未知角色按客户端处理
func (c *Config) ParsedRole() types.Role {
	role, _ := types.ParseRole(c.Role)
	return role
}
