package quic

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHello_NilAndEmpty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, writeHello(&buf, nil))
	got, err := readHello(&buf)
	require.NoError(t, err)
	assert.Nil(t, got, "nil 表示未携带连接数据")

	require.NoError(t, writeHello(&buf, []byte{}))
	got, err = readHello(&buf)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	require.NoError(t, writeHello(&buf, []byte("join")))
	got, err = readHello(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("join"), got)
}

func TestHello_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, writeHello(&buf, make([]byte, maxHelloSize+1)), ErrFrameTooLarge)

	hdr := make([]byte, 4)
	binary.LittleEndian.PutUint32(hdr, maxHelloSize+1)
	_, err := readHello(bytes.NewReader(hdr))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestFrame_Sequence(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("a")))
	require.NoError(t, writeFrame(&buf, nil))
	require.NoError(t, writeFrame(&buf, []byte("ccc")))

	for _, want := range []string{"a", "", "ccc"} {
		got, err := readFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	_, err := readFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrame_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("hello")))
	truncated := buf.Bytes()[:6]

	_, err := readFrame(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
