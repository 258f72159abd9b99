package punch

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-punchnet/internal/core/nat/natproto"
	"github.com/dep2p/go-punchnet/tests/mocks"
)

var testRelay = netip.MustParseAddrPort("198.51.100.1:6000")

func fixedIP(s string) func() (netip.Addr, error) {
	return func() (netip.Addr, error) { return netip.MustParseAddr(s), nil }
}

func TestRegistrar_Register(t *testing.T) {
	engine := mocks.NewMockEngine()
	r := NewRegistrar(engine, testRelay, 5*time.Second, func() int { return 7777 }, fixedIP("192.168.1.20"))

	require.NoError(t, r.Register())
	sent := engine.UnconnectedTo(testRelay)
	require.Len(t, sent, 1)

	pkt, err := natproto.UnmarshalRegister(sent[0])
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20:7777", pkt.Internal.String())
	assert.Equal(t, testRelay, r.Relay())
}

func TestRegistrar_LocalIPError(t *testing.T) {
	engine := mocks.NewMockEngine()
	r := NewRegistrar(engine, testRelay, time.Second, func() int { return 1 },
		func() (netip.Addr, error) { return netip.Addr{}, errors.New("no network") })

	assert.Error(t, r.Register())
	assert.Empty(t, engine.UnconnectedCalls)
}

func TestRegistrar_Heartbeat(t *testing.T) {
	engine := mocks.NewMockEngine()
	r := NewRegistrar(engine, testRelay, 5*time.Second, func() int { return 7777 }, fixedIP("10.0.0.2"))

	start := time.Unix(1000, 0)
	r.ResetHeartbeat(start)

	assert.False(t, r.Poll(start.Add(4*time.Second)))
	assert.Empty(t, engine.UnconnectedCalls)

	assert.True(t, r.Poll(start.Add(5*time.Second)))
	assert.Len(t, engine.UnconnectedCalls, 1)

	assert.False(t, r.Poll(start.Add(9*time.Second)), "计时已重置")
	assert.True(t, r.Poll(start.Add(10*time.Second)))
	assert.Len(t, engine.UnconnectedCalls, 2)
}
