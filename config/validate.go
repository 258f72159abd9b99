package config

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-punchnet/pkg/types"
)

// ErrInvalidConfig 配置无效
var ErrInvalidConfig = errors.New("invalid config")

// ValidateAll 验证配置，nil 视为错误
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateForRole 在 Validate 之外检查角色相关的约束
//
// 服务端需要固定端口与主机名：客户端按端口范围探测，
// 并以主机名区分同一端点上的不同会话。
func ValidateForRole(c *Config) error {
	if err := ValidateAll(c); err != nil {
		return err
	}

	if c.ParsedRole() != types.RoleServer {
		return nil
	}
	if c.ListenPort == 0 {
		return fmt.Errorf("%w: server requires a fixed listen port", ErrInvalidConfig)
	}
	if c.HostName == "" {
		return fmt.Errorf("%w: server requires a host name", ErrInvalidConfig)
	}
	return nil
}
