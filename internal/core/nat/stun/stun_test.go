package stun

import (
	"net"
	"testing"

	"github.com/pion/stun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildResponse(t *testing.T, txID [stun.TransactionIDSize]byte, setters ...stun.Setter) []byte {
	t.Helper()

	all := append([]stun.Setter{stun.NewTransactionIDSetter(txID), stun.BindingSuccess}, setters...)
	msg, err := stun.Build(all...)
	require.NoError(t, err)
	return msg.Raw
}

func requestTxID(t *testing.T, req []byte) [stun.TransactionIDSize]byte {
	t.Helper()

	m := &stun.Message{Raw: append([]byte(nil), req...)}
	require.NoError(t, m.Decode())
	assert.Equal(t, stun.BindingRequest, m.Type)
	return m.TransactionID
}

func TestProber_XORMappedAddress(t *testing.T) {
	p := NewProber()
	req, err := p.Request()
	require.NoError(t, err)
	assert.True(t, IsMessage(req))

	res := buildResponse(t, requestTxID(t, req), &stun.XORMappedAddress{IP: net.ParseIP("203.0.113.4"), Port: 40123})

	ep, ok := p.Handle(res)
	require.True(t, ok)
	assert.Equal(t, "203.0.113.4:40123", ep.String())

	mapped, ok := p.Mapped()
	assert.True(t, ok)
	assert.Equal(t, ep, mapped)

	_, ok = p.Handle(res)
	assert.False(t, ok, "同一事务只接受一次")
}

func TestProber_MappedAddressFallback(t *testing.T) {
	p := NewProber()
	req, err := p.Request()
	require.NoError(t, err)

	res := buildResponse(t, requestTxID(t, req), &stun.MappedAddress{IP: net.ParseIP("198.51.100.9"), Port: 1000})
	ep, ok := p.Handle(res)
	require.True(t, ok)
	assert.Equal(t, "198.51.100.9:1000", ep.String())
}

func TestProber_RejectsForeignTransaction(t *testing.T) {
	p := NewProber()
	_, err := p.Request()
	require.NoError(t, err)

	var other [stun.TransactionIDSize]byte
	other[0] = 0xAA
	res := buildResponse(t, other, &stun.XORMappedAddress{IP: net.ParseIP("1.2.3.4"), Port: 1})

	_, ok := p.Handle(res)
	assert.False(t, ok)
	_, ok = p.Mapped()
	assert.False(t, ok)
}

func TestProber_NoRequest(t *testing.T) {
	p := NewProber()
	_, ok := p.Handle([]byte{0x01, 0x01, 0, 0})
	assert.False(t, ok)
}

func TestIsMessage_DistinctFromDatagramKinds(t *testing.T) {
	assert.False(t, IsMessage([]byte{0x01, 0xB3, 0x15, 0x00, 0x00}), "发现探测包不应被识别为 STUN")
}

func TestResolveServer(t *testing.T) {
	ep, err := ResolveServer("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3478", ep.String())

	ep, err = ResolveServer("127.0.0.1:19302")
	require.NoError(t, err)
	assert.Equal(t, uint16(19302), ep.Port())

	_, err = ResolveServer("[::1")
	assert.ErrorIs(t, err, ErrInvalidServer)
}
