package addrutil

import (
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubInterfaces(t *testing.T, gw func() (net.IP, error), addrs ...string) {
	t.Helper()

	origGW, origAddrs := discoverInterface, interfaceAddrs
	t.Cleanup(func() { discoverInterface, interfaceAddrs = origGW, origAddrs })

	discoverInterface = gw
	interfaceAddrs = func() ([]net.Addr, error) {
		out := make([]net.Addr, 0, len(addrs))
		for _, a := range addrs {
			_, ipNet, err := net.ParseCIDR(a)
			require.NoError(t, err)
			ip, _, _ := net.ParseCIDR(a)
			ipNet.IP = ip
			out = append(out, ipNet)
		}
		return out, nil
	}
}

func noGateway() (net.IP, error) { return nil, errors.New("no gateway") }

func TestLocalIP(t *testing.T) {
	t.Run("默认网关接口优先", func(t *testing.T) {
		stubInterfaces(t, func() (net.IP, error) { return net.ParseIP("192.168.1.20"), nil }, "10.0.0.5/8")
		ip, err := LocalIP()
		require.NoError(t, err)
		assert.Equal(t, "192.168.1.20", ip.String())
	})

	t.Run("无网关时取首个 IPv4", func(t *testing.T) {
		stubInterfaces(t, noGateway, "127.0.0.1/8", "fe80::1/64", "2001:db8::5/64", "10.0.0.5/8")
		ip, err := LocalIP()
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.5", ip.String())
	})

	t.Run("仅 IPv6 时回退", func(t *testing.T) {
		stubInterfaces(t, noGateway, "127.0.0.1/8", "2001:db8::5/64")
		ip, err := LocalIP()
		require.NoError(t, err)
		assert.Equal(t, "2001:db8::5", ip.String())
	})

	t.Run("没有可用地址", func(t *testing.T) {
		stubInterfaces(t, noGateway, "127.0.0.1/8", "fe80::1/64")
		_, err := LocalIP()
		assert.ErrorIs(t, err, ErrNoLocalAddress)
	})
}

func TestIPType(t *testing.T) {
	assert.True(t, IsPrivate(netip.MustParseAddr("192.168.0.1")))
	assert.True(t, IsPrivate(netip.MustParseAddr("::ffff:10.1.2.3")))
	assert.True(t, IsPrivate(netip.MustParseAddr("fd00::1")))
	assert.False(t, IsPrivate(netip.MustParseAddr("8.8.8.8")))

	assert.True(t, IsPublic(netip.MustParseAddr("8.8.8.8")))
	assert.False(t, IsPublic(netip.MustParseAddr("127.0.0.1")))
	assert.False(t, IsPublic(netip.MustParseAddr("172.16.0.1")))
}
