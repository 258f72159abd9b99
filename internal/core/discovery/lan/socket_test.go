package lan

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-punchnet/tests/testutil"
)

func TestUDPSocket_LoopbackDelivery(t *testing.T) {
	// 以回环地址代替广播地址，验证收发与队列
	sock := NewUDPSocket(netip.MustParseAddr("127.0.0.1"))
	require.NoError(t, sock.Open())
	defer sock.Close()

	peer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer peer.Close()
	peerPort := peer.LocalAddr().(*net.UDPAddr).Port

	require.NoError(t, sock.Broadcast(EncodeProbe(DefaultSecret), peerPort))

	buf := make([]byte, 64)
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, from, err := peer.ReadFromUDPAddrPort(buf)
	require.NoError(t, err)
	secret, ok := DecodeProbe(buf[:n])
	require.True(t, ok)
	assert.Equal(t, DefaultSecret, secret)

	_, err = peer.WriteToUDPAddrPort(EncodeReply(DefaultSecret, "alpha"), from)
	require.NoError(t, err)

	var got []byte
	testutil.Eventually(t, 2*time.Second, func() bool {
		sock.Drain(func(data []byte, _ netip.AddrPort) { got = data })
		return got != nil
	}, "应收到应答")

	host, reason := decodeReply(got, DefaultSecret)
	assert.Equal(t, dropNone, reason)
	assert.Equal(t, "alpha", host)
}

func TestUDPSocket_Closed(t *testing.T) {
	sock := NewUDPSocket(netip.MustParseAddr("127.0.0.1"))
	assert.ErrorIs(t, sock.Broadcast([]byte{1}, 9), ErrSocketClosed)
	assert.NoError(t, sock.Close())
	assert.Zero(t, sock.LocalPort())
}
