package binary

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type limitWrite struct{}

func (l *limitWrite) Write(p []byte) (n int, err error) {
	return 0, errors.New("short write")
}

func TestReadWriteBool(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.NoError(t, WriteBool(buf, true))
	assert.NoError(t, WriteBool(buf, false))
	assert.Equal(t, []byte{1, 0}, buf.Bytes())

	got, err := ReadBool(bytes.NewReader([]byte{1}))
	assert.NoError(t, err)
	assert.True(t, got)

	got, err = ReadBool(bytes.NewReader([]byte{0}))
	assert.NoError(t, err)
	assert.False(t, got)

	_, err = ReadBool(bytes.NewReader(nil))
	assert.Error(t, err)

	assert.Error(t, WriteBool(&limitWrite{}, true))
}

func TestReadWriteUint16(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.NoError(t, WriteUint16(buf, 1))
	assert.Equal(t, []byte{0, 1}, buf.Bytes())

	got, err := ReadUint16(bytes.NewReader([]byte{0, 1}))
	assert.NoError(t, err)
	assert.Equal(t, uint16(1), got)

	_, err = ReadUint16(bytes.NewReader([]byte{1}))
	assert.Error(t, err)

	assert.Error(t, WriteUint16(&limitWrite{}, 1))
}

func TestReadWriteUint32(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.NoError(t, WriteUint32(buf, 1))
	assert.Equal(t, []byte{0, 0, 0, 1}, buf.Bytes())

	got, err := ReadUint32(bytes.NewReader([]byte{0, 0, 0, 1}))
	assert.NoError(t, err)
	assert.Equal(t, uint32(1), got)

	_, err = ReadUint32(bytes.NewReader([]byte{0, 0, 1}))
	assert.Error(t, err)

	assert.Error(t, WriteUint32(&limitWrite{}, 1))
}

func TestReadWriteString(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.NoError(t, WriteString(buf, []byte("1")))
	assert.Equal(t, []byte{0, 1, '1'}, buf.Bytes())
	assert.Error(t, WriteString(&limitWrite{}, []byte(" ")))

	got, err := ReadString(bytes.NewBuffer([]byte{0, 1, '1'}))
	assert.NoError(t, err)
	assert.Equal(t, "1", got)

	_, err = ReadString(bytes.NewBuffer([]byte{0, 2, '1'}))
	assert.Error(t, err)

	_, err = ReadString(bytes.NewBuffer([]byte{0}))
	assert.Error(t, err)
}
