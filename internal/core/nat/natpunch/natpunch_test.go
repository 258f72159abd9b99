package natpunch

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-punchnet/internal/core/nat/natproto"
	"github.com/dep2p/go-punchnet/pkg/types"
	"github.com/dep2p/go-punchnet/tests/mocks"
)

var (
	relay    = netip.MustParseAddrPort("198.51.100.1:6000")
	local    = netip.MustParseAddrPort("10.0.0.2:50000")
	hostInt  = netip.MustParseAddrPort("192.168.0.5:7777")
	hostExt  = netip.MustParseAddrPort("203.0.113.7:41000")
	hostSeen = netip.MustParseAddrPort("203.0.113.7:41000")
)

func newModule() (*Module, *mocks.MockEngine) {
	engine := mocks.NewMockEngine()
	m := New(engine, func() netip.AddrPort { return local })
	m.Trust(relay)
	return m, engine
}

func TestModule_SendIntroduceRequest(t *testing.T) {
	m, engine := newModule()

	require.NoError(t, m.SendIntroduceRequest(relay, "203.0.113.7:7777"))
	sent := engine.UnconnectedTo(relay)
	require.Len(t, sent, 1)

	req, err := natproto.UnmarshalIntroduceRequest(sent[0])
	require.NoError(t, err)
	assert.Equal(t, local, req.Internal)
	assert.Equal(t, "203.0.113.7:7777", req.Token)

	assert.ErrorIs(t, m.SendIntroduceRequest(relay, ""), ErrNoToken)
}

func TestModule_IntroducePunchesBothEndpoints(t *testing.T) {
	m, engine := newModule()

	intro := &natproto.Introduce{Internal: hostInt, External: hostExt, Token: "tok"}
	assert.True(t, m.Handle(intro.Marshal(), relay))

	toInt := engine.UnconnectedTo(hostInt)
	toExt := engine.UnconnectedTo(hostExt)
	require.Len(t, toInt, 1)
	require.Len(t, toExt, 1)

	p, err := natproto.UnmarshalPunch(toInt[0])
	require.NoError(t, err)
	assert.False(t, p.External)

	p, err = natproto.UnmarshalPunch(toExt[0])
	require.NoError(t, err)
	assert.True(t, p.External)
	assert.Equal(t, "tok", p.Token)
}

func TestModule_IntroduceFromUntrustedSource(t *testing.T) {
	m, engine := newModule()

	intro := &natproto.Introduce{Internal: hostInt, Token: "tok"}
	assert.True(t, m.Handle(intro.Marshal(), netip.MustParseAddrPort("6.6.6.6:6000")), "仍视为已消费")
	assert.Empty(t, engine.UnconnectedCalls)
}

func TestModule_PunchQueuesSuccess(t *testing.T) {
	m, _ := newModule()

	assert.True(t, m.Handle((&natproto.Punch{Token: "a", External: true}).Marshal(), hostSeen))
	assert.True(t, m.Handle((&natproto.Punch{Token: "a"}).Marshal(), hostInt))

	type got struct {
		target   netip.AddrPort
		addrType types.NatAddressType
	}
	var events []got
	m.PollEvents(ListenerFunc(func(target netip.AddrPort, addrType types.NatAddressType, token string) {
		assert.Equal(t, "a", token)
		events = append(events, got{target, addrType})
	}))

	assert.Equal(t, []got{
		{hostSeen, types.NatAddressExternal},
		{hostInt, types.NatAddressInternal},
	}, events, "按到达顺序交付")

	m.PollEvents(ListenerFunc(func(netip.AddrPort, types.NatAddressType, string) {
		t.Fatal("事件只交付一次")
	}))
}

func TestModule_IgnoresOtherKinds(t *testing.T) {
	m, _ := newModule()
	assert.False(t, m.Handle([]byte{0x01, 0, 0, 0, 0}, relay))
	assert.False(t, m.Handle(nil, relay))
	assert.False(t, m.Handle([]byte{0xC0}, relay))
}
