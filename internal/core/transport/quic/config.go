package quic

import (
	"fmt"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN 协议标识
const ALPN = "punchnet"

// 默认值
const (
	DefaultDisconnectTimeout  = 5 * time.Second
	DefaultReconnectInterval  = 500 * time.Millisecond
	DefaultMaxConnectAttempts = 10
	DefaultMaxDatagramSize    = 1200
)

// Config 引擎配置
type Config struct {
	// DisconnectTimeout 无数据到达多久视为超时断开
	DisconnectTimeout time.Duration

	// ReconnectInterval × MaxConnectAttempts 为握手超时
	ReconnectInterval  time.Duration
	MaxConnectAttempts int

	// MaxDatagramSize 单个不可靠数据报最大载荷
	MaxDatagramSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DisconnectTimeout:  DefaultDisconnectTimeout,
		ReconnectInterval:  DefaultReconnectInterval,
		MaxConnectAttempts: DefaultMaxConnectAttempts,
		MaxDatagramSize:    DefaultMaxDatagramSize,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.DisconnectTimeout <= 0 || c.ReconnectInterval <= 0 {
		return fmt.Errorf("quic: timeouts must be positive")
	}
	if c.MaxConnectAttempts < 1 {
		return fmt.Errorf("quic: max connect attempts must be positive")
	}
	if c.MaxDatagramSize < 1 {
		return fmt.Errorf("quic: max datagram size must be positive")
	}
	return nil
}

// HandshakeTimeout 握手超时
func (c Config) HandshakeTimeout() time.Duration {
	return c.ReconnectInterval * time.Duration(c.MaxConnectAttempts)
}

// quicConfig 转换为 quic-go 配置
func (c Config) quicConfig() *quic.Config {
	return &quic.Config{
		// 空闲超时即断开超时，保活间隔取其一半
		MaxIdleTimeout:       c.DisconnectTimeout,
		KeepAlivePeriod:      c.DisconnectTimeout / 2,
		HandshakeIdleTimeout: c.HandshakeTimeout(),
		MaxIncomingStreams:   1,
		EnableDatagrams:      true,
	}
}
