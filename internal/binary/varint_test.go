package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVarIntRoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, MaxVarIntValue}
	for _, v := range cases {
		buf := &bytes.Buffer{}
		err := WriteVarInt(buf, v)
		assert.NoError(t, err)
		assert.LessOrEqual(t, buf.Len(), MaxVarIntBytes)
		assert.Equal(t, VarIntSize(v), buf.Len())

		got, err := ReadVarInt(bytes.NewReader(buf.Bytes()))
		assert.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestVarIntOverflow(t *testing.T) {
	_, err := ReadVarInt(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x7F}))
	assert.Error(t, err)
}

func TestVarIntTooLargeToEncode(t *testing.T) {
	_, err := EncodeVarInt(MaxVarIntValue + 1)
	assert.Error(t, err)
}

func TestReadBytesTruncated(t *testing.T) {
	_, err := ReadBytes(bytes.NewReader([]byte{0, 5, 1, 2}))
	assert.Error(t, err)
}
