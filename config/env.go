package config

import (
	"strconv"
	"strings"
)

// 环境变量，均带 EnvPrefix 前缀
const (
	EnvPrefix = "PUNCHNET_"

	EnvRole         = "ROLE"
	EnvListenPort   = "LISTEN_PORT"
	EnvMaxPlayers   = "MAX_PLAYERS"
	EnvHostName     = "HOST_NAME"
	EnvSecret       = "DISCOVERY_SECRET"
	EnvRelayAddress = "RELAY_ADDRESS"
	EnvRelayPort    = "RELAY_PORT"
	EnvStunServer   = "STUN_SERVER"
	EnvPortMapping  = "PORT_MAPPING"
	EnvMetricsAddr  = "METRICS_ADDR"
)

// LookupFunc 环境变量查询函数，通常为 os.LookupEnv
type LookupFunc func(key string) (string, bool)

// ApplyEnv 应用环境变量覆盖
//
// 环境变量优先级高于配置文件，低于命令行参数。无法解析的数值被忽略。
func ApplyEnv(c *Config, lookup LookupFunc) {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	setInt := func(name string, dst *int) {
		if v, ok := get(name); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	setString(EnvRole, &c.Role)
	setInt(EnvListenPort, &c.ListenPort)
	setInt(EnvMaxPlayers, &c.MaxPlayers)
	setString(EnvHostName, &c.HostName)
	setString(EnvRelayAddress, &c.NAT.RelayAddress)
	setInt(EnvRelayPort, &c.NAT.RelayPort)
	setString(EnvStunServer, &c.NAT.StunServer)
	setString(EnvPortMapping, &c.NAT.PortMapping)
	setString(EnvMetricsAddr, &c.Metrics.ListenAddr)

	if v, ok := get(EnvSecret); ok {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			c.Discovery.Secret = int32(n)
		}
	}
}
