// Package addrutil 提供本机地址选择与 IP 类型判断
package addrutil

import (
	"errors"
	"net"
	"net/netip"

	"github.com/jackpal/gateway"
)

// ErrNoLocalAddress 找不到可用的本机地址
var ErrNoLocalAddress = errors.New("addrutil: no usable local address")

// 可在测试中替换
var (
	discoverInterface = gateway.DiscoverInterface
	interfaceAddrs    = net.InterfaceAddrs
)

// ============================================================================
//                              本机地址
// ============================================================================

// LocalIP 返回本机在局域网中的地址
//
// 优先取默认网关所在接口的 IPv4 地址；失败时遍历接口，
// 依次尝试 IPv4 与 IPv6（不含回环和链路本地地址）。
func LocalIP() (netip.Addr, error) {
	if ip, err := discoverInterface(); err == nil {
		if addr, ok := netip.AddrFromSlice(ip); ok && usable(addr.Unmap()) {
			return addr.Unmap(), nil
		}
	}

	addrs, err := interfaceAddrs()
	if err != nil {
		return netip.Addr{}, err
	}

	var v6 netip.Addr
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if !usable(addr) {
			continue
		}
		if addr.Is4() {
			return addr, nil
		}
		if !v6.IsValid() {
			v6 = addr
		}
	}

	if v6.IsValid() {
		return v6, nil
	}
	return netip.Addr{}, ErrNoLocalAddress
}

func usable(addr netip.Addr) bool {
	return addr.IsValid() && !addr.IsLoopback() && !addr.IsLinkLocalUnicast() && !addr.IsUnspecified() && !addr.IsMulticast()
}

// ============================================================================
//                              IP 类型判断工具
// ============================================================================

// IsPrivate 判断是否是私网地址（含 IPv6 ULA 与链路本地）
func IsPrivate(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsPrivate() || addr.IsLinkLocalUnicast()
}

// IsPublic 判断是否是公网单播地址
func IsPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsGlobalUnicast() && !addr.IsPrivate() && !addr.IsLoopback()
}
