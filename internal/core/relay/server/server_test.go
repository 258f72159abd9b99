package server

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-punchnet/internal/core/nat/natproto"
	"github.com/dep2p/go-punchnet/tests/testutil"
)

func startServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	for _, fn := range mutate {
		fn(&cfg)
	}

	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return s
}

func udpPeer(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func addrPort(addr net.Addr) netip.AddrPort {
	ap, _ := toAddrPort(addr)
	return ap
}

func readIntroduce(t *testing.T, conn net.PacketConn) *natproto.Introduce {
	t.Helper()
	buf := make([]byte, 1500)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)

	intro, err := natproto.UnmarshalIntroduce(buf[:n])
	require.NoError(t, err)
	return intro
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.EntryTTL = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.MaxHosts = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestServer_RegisterAndIntroduce(t *testing.T) {
	s := startServer(t)
	relay := addrPort(s.Addr())

	host := udpPeer(t)
	client := udpPeer(t)
	hostInternal := netip.MustParseAddrPort("192.168.0.5:7777")
	clientInternal := netip.MustParseAddrPort("10.0.0.3:50000")

	reg := &natproto.RegisterPacket{Internal: hostInternal}
	_, err := host.WriteTo(reg.Marshal(), net.UDPAddrFromAddrPort(relay))
	require.NoError(t, err)

	hostExternal := addrPort(host.LocalAddr())
	testutil.Eventually(t, 3*time.Second, func() bool {
		_, ok := s.Lookup(hostExternal.String())
		return ok
	}, "主机应完成登记")

	h, ok := s.Lookup(hostInternal.String())
	require.True(t, ok, "内网端点也可作为令牌")
	assert.Equal(t, hostExternal, h.External)
	assert.Equal(t, 1, s.Hosts())

	req := &natproto.IntroduceRequest{Internal: clientInternal, Token: hostExternal.String()}
	_, err = client.WriteTo(req.Marshal(), net.UDPAddrFromAddrPort(relay))
	require.NoError(t, err)

	toHost := readIntroduce(t, host)
	assert.Equal(t, clientInternal, toHost.Internal)
	assert.Equal(t, addrPort(client.LocalAddr()), toHost.External)
	assert.Equal(t, hostExternal.String(), toHost.Token)

	toClient := readIntroduce(t, client)
	assert.Equal(t, hostInternal, toClient.Internal)
	assert.Equal(t, hostExternal, toClient.External)
}

func TestServer_RefreshKeepsID(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	from := netip.MustParseAddrPort("203.0.113.7:41000")
	reg := (&natproto.RegisterPacket{Internal: netip.MustParseAddrPort("192.168.0.5:7777")}).Marshal()
	now := time.Now()

	s.handle(reg, from, now)
	first, ok := s.Lookup(from.String())
	require.True(t, ok)
	id := first.ID

	s.handle(reg, from, now.Add(time.Second))
	again, ok := s.Lookup(from.String())
	require.True(t, ok)
	assert.Equal(t, id, again.ID)
	assert.Equal(t, now.Add(time.Second), again.Registered)
	assert.Equal(t, 1, s.Hosts())

	moved := (&natproto.RegisterPacket{Internal: netip.MustParseAddrPort("192.168.0.6:7777")}).Marshal()
	s.handle(moved, from, now.Add(2*time.Second))
	changed, _ := s.Lookup(from.String())
	assert.NotEqual(t, id, changed.ID, "内网端点变化视为新主机")
}

func TestServer_EntryExpires(t *testing.T) {
	s, err := New(Config{ListenAddr: ":0", EntryTTL: 50 * time.Millisecond, MaxHosts: 4})
	require.NoError(t, err)

	from := netip.MustParseAddrPort("203.0.113.7:41000")
	s.handle((&natproto.RegisterPacket{Internal: netip.MustParseAddrPort("192.168.0.5:7777")}).Marshal(), from, time.Now())
	assert.Equal(t, 1, s.Hosts())

	testutil.Eventually(t, 2*time.Second, func() bool {
		_, ok := s.Lookup(from.String())
		return !ok
	}, "登记应过期")
}

func TestServer_UnknownTokenIgnored(t *testing.T) {
	s := startServer(t)
	relay := addrPort(s.Addr())
	client := udpPeer(t)

	req := &natproto.IntroduceRequest{Internal: netip.MustParseAddrPort("10.0.0.3:5000"), Token: "198.51.100.77:7777"}
	_, err := client.WriteTo(req.Marshal(), net.UDPAddrFromAddrPort(relay))
	require.NoError(t, err)

	buf := make([]byte, 64)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = client.ReadFrom(buf)
	assert.Error(t, err, "未知令牌不应答")
}

func TestServer_MalformedIgnored(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	from := netip.MustParseAddrPort("203.0.113.7:41000")
	s.handle(nil, from, time.Now())
	s.handle([]byte{0x03}, from, time.Now())
	s.handle([]byte{0x7F, 1, 2}, from, time.Now())
	s.handle([]byte{0x01, 0xB3, 0x15, 0, 0}, from, time.Now())
	assert.Equal(t, 0, s.Hosts())
}

func TestServer_CloseBeforeServe(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Serve(context.Background()), ErrServerClosed)
	assert.Nil(t, s.Addr())
}
