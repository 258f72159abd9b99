package natproto

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-punchnet/internal/core/wire"
)

func TestRegisterPacket_RoundTrip(t *testing.T) {
	cases := []string{"192.168.1.20:7777", "[fe80::1]:65535", "10.0.0.1:0"}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			in := &RegisterPacket{Internal: netip.MustParseAddrPort(c)}
			out, err := UnmarshalRegister(in.Marshal())
			require.NoError(t, err)
			assert.Equal(t, in.Internal, out.Internal)
		})
	}
}

func TestRegisterPacket_Layout(t *testing.T) {
	p := &RegisterPacket{Internal: netip.MustParseAddrPort("1.2.3.4:258")}
	assert.Equal(t, []byte{
		byte(wire.KindNatRegister),
		0x08, 0x00, '1', '.', '2', '.', '3', '.', '4',
		0x02, 0x01, 0x00, 0x00,
	}, p.Marshal())
}

func TestRegisterPacket_Invalid(t *testing.T) {
	t.Run("端口越界", func(t *testing.T) {
		w := wire.NewWriter(wire.KindNatRegister)
		w.PutString("1.2.3.4")
		w.PutInt32(70000)
		_, err := UnmarshalRegister(w.Bytes())
		assert.ErrorIs(t, err, ErrInvalidPort)
	})

	t.Run("地址不可解析", func(t *testing.T) {
		w := wire.NewWriter(wire.KindNatRegister)
		w.PutString("not-an-ip")
		w.PutInt32(1)
		_, err := UnmarshalRegister(w.Bytes())
		assert.ErrorIs(t, err, ErrInvalidEndpoint)
	})

	t.Run("截断", func(t *testing.T) {
		w := wire.NewWriter(wire.KindNatRegister)
		w.PutString("1.2.3.4")
		_, err := UnmarshalRegister(w.Bytes())
		assert.ErrorIs(t, err, wire.ErrShortBuffer)
	})

	t.Run("类型不符", func(t *testing.T) {
		_, err := UnmarshalRegister([]byte{byte(wire.KindNatPunch)})
		assert.ErrorIs(t, err, wire.ErrUnexpectedKind)
	})
}

func TestIntroduce_RoundTrip(t *testing.T) {
	req := &IntroduceRequest{Internal: netip.MustParseAddrPort("10.0.0.5:50000"), Token: "203.0.113.9:7777"}
	gotReq, err := UnmarshalIntroduceRequest(req.Marshal())
	require.NoError(t, err)
	assert.Equal(t, req, gotReq)

	intro := &Introduce{
		Internal: netip.MustParseAddrPort("192.168.0.2:7777"),
		External: netip.MustParseAddrPort("203.0.113.9:40001"),
		Token:    "203.0.113.9:7777",
	}
	gotIntro, err := UnmarshalIntroduce(intro.Marshal())
	require.NoError(t, err)
	assert.Equal(t, intro, gotIntro)

	punch := &Punch{Token: "t", External: true}
	gotPunch, err := UnmarshalPunch(punch.Marshal())
	require.NoError(t, err)
	assert.Equal(t, punch, gotPunch)
}

func TestIntroduceRequest_MissingToken(t *testing.T) {
	_, err := UnmarshalIntroduceRequest((&IntroduceRequest{}).Marshal())
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestIntroduce_UnknownFieldsSkipped(t *testing.T) {
	b := (&Punch{Token: "x"}).Marshal()
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))

	p, err := UnmarshalPunch(b)
	require.NoError(t, err)
	assert.Equal(t, "x", p.Token)
	assert.False(t, p.External)
}

func TestIntroduce_Corrupt(t *testing.T) {
	b := []byte{byte(wire.KindNatIntroduce), 0x0A, 0x20, 'x'}
	_, err := UnmarshalIntroduce(b)
	assert.Error(t, err)
}
