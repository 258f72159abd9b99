package types

import (
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// IsLocalhost 判断地址是否指向本机
//
// 仅匹配 "127.0.0.1"、"::1" 与 "localhost"（不区分大小写）。
func IsLocalhost(address string) bool {
	return address == "127.0.0.1" || address == "::1" || strings.EqualFold(address, "localhost")
}

// EndpointToken 返回中继引荐使用的令牌 "ip:port"
func EndpointToken(address string, port int) string {
	return net.JoinHostPort(address, strconv.Itoa(port))
}

// ResolveEndpoint 将地址与端口解析为端点
//
// localhost 解析为 127.0.0.1，其余必须是字面 IP。
func ResolveEndpoint(address string, port int) (netip.AddrPort, bool) {
	if port < 0 || port > 65535 {
		return netip.AddrPort{}, false
	}
	if strings.EqualFold(address, "localhost") {
		return netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), uint16(port)), true
	}
	ip, err := netip.ParseAddr(address)
	if err != nil {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(ip.Unmap(), uint16(port)), true
}
