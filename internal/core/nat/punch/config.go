package punch

import (
	"fmt"
	"time"
)

// MaxConnectPayload 连接请求携带数据的上限
const MaxConnectPayload = 200

// 默认值
const (
	DefaultMaxPlayers        = 16
	DefaultRelayPort         = 6000
	DefaultNatPunchHeartbeat = 5 * time.Second
	DefaultNatPunchTimeout   = 3 * time.Second
	DefaultDiscoverySecret   = 5555
)

// Config 打洞传输配置
type Config struct {
	// MaxPlayers 连接池容量
	MaxPlayers int

	// RelayAddress, RelayPort 会合中继端点，地址必须是字面 IP
	RelayAddress string
	RelayPort    int

	// NatPunchHeartbeat 服务端重新登记间隔
	NatPunchHeartbeat time.Duration

	// NatPunchTimeout 客户端等待引荐成功的时长，超时后直接连接
	NatPunchTimeout time.Duration

	// DiscoverySecret, HostName 服务端回应局域网发现探测时使用
	DiscoverySecret int32
	HostName        string

	// StunServer 可选，服务端经同一套接字探测公网端点
	StunServer string
}

// DefaultConfig 返回默认配置（RelayAddress 需调用方填写）
func DefaultConfig() Config {
	return Config{
		MaxPlayers:        DefaultMaxPlayers,
		RelayPort:         DefaultRelayPort,
		NatPunchHeartbeat: DefaultNatPunchHeartbeat,
		NatPunchTimeout:   DefaultNatPunchTimeout,
		DiscoverySecret:   DefaultDiscoverySecret,
	}
}

// Validate 验证配置（中继地址在 New 中解析）
func (c Config) Validate() error {
	if c.MaxPlayers < 1 {
		return fmt.Errorf("%w: max players must be positive", ErrInvalidConfig)
	}
	if c.RelayPort < 1 || c.RelayPort > 65535 {
		return fmt.Errorf("%w: relay port %d", ErrInvalidConfig, c.RelayPort)
	}
	if c.NatPunchHeartbeat <= 0 || c.NatPunchTimeout <= 0 {
		return fmt.Errorf("%w: punch intervals must be positive", ErrInvalidConfig)
	}
	return nil
}
