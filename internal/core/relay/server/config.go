package server

import (
	"fmt"
	"time"
)

// 默认值
const (
	DefaultListenAddr = ":6000"
	DefaultEntryTTL   = 30 * time.Second
	DefaultMaxHosts   = 4096
)

// Config 中继配置
type Config struct {
	// ListenAddr UDP 监听地址
	ListenAddr string

	// EntryTTL 主机登记有效期，应大于主机的登记心跳
	EntryTTL time.Duration

	// MaxHosts 最多记录的主机数，超出时淘汰最久未刷新的
	MaxHosts int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ListenAddr: DefaultListenAddr,
		EntryTTL:   DefaultEntryTTL,
		MaxHosts:   DefaultMaxHosts,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: empty listen address", ErrInvalidConfig)
	}
	if c.EntryTTL <= 0 {
		return fmt.Errorf("%w: entry ttl must be positive", ErrInvalidConfig)
	}
	if c.MaxHosts < 1 {
		return fmt.Errorf("%w: max hosts must be positive", ErrInvalidConfig)
	}
	return nil
}
