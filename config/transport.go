package config

import (
	"fmt"
	"time"
)

// TransportConfig 投递引擎配置
type TransportConfig struct {
	// DisconnectTimeout 无数据到达多久视为断开
	DisconnectTimeout Duration `json:"disconnect_timeout"`

	// ReconnectInterval 与 MaxConnectAttempts 之积为握手超时
	ReconnectInterval  Duration `json:"reconnect_interval"`
	MaxConnectAttempts int      `json:"max_connect_attempts"`

	// UpdateInterval 轮询节拍
	UpdateInterval Duration `json:"update_interval"`

	// MaxDatagramSize 不可靠数据报最大载荷
	MaxDatagramSize int `json:"max_datagram_size"`
}

// DefaultTransportConfig 返回默认引擎配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DisconnectTimeout:  Duration(5 * time.Second),
		ReconnectInterval:  Duration(500 * time.Millisecond),
		MaxConnectAttempts: 10,
		UpdateInterval:     Duration(15 * time.Millisecond),
		MaxDatagramSize:    1200,
	}
}

// Validate 验证引擎配置
func (c TransportConfig) Validate() error {
	if c.DisconnectTimeout <= 0 || c.ReconnectInterval <= 0 || c.UpdateInterval <= 0 {
		return fmt.Errorf("%w: transport intervals must be positive", ErrInvalidConfig)
	}
	if c.MaxConnectAttempts < 1 {
		return fmt.Errorf("%w: max connect attempts must be positive", ErrInvalidConfig)
	}
	if c.MaxDatagramSize < 1 {
		return fmt.Errorf("%w: max datagram size must be positive", ErrInvalidConfig)
	}
	return nil
}
