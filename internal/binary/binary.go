/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package binary implements the low-level wire primitives every MQTT
// packet is built from: big-endian fixed-width integers, length-prefixed
// UTF-8 strings and binary blobs, and the variable-byte integer used by
// the remaining-length field and v5 property blocks.
package binary

import (
	"encoding/binary"
	"io"

	"github.com/yunqi/lighthouse/internal/xerror"
)

// ReadBool reads a single byte and reports it as a boolean; any nonzero
// byte is true.
func ReadBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// WriteBool writes b as a single 0x00/0x01 byte.
func WriteBool(w io.Writer, b bool) error {
	var v byte
	if b {
		v = 1
	}
	_, err := w.Write([]byte{v})
	return err
}

// ReadUint16 reads a big-endian u16.
func ReadUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

// WriteUint16 writes v as a big-endian u16.
func WriteUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadUint32 reads a big-endian u32.
func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// WriteUint32 writes v as a big-endian u32.
func WriteUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadByte reads a single byte, for callers that don't have an
// io.ByteReader handy.
func ReadByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBytes reads a 2-byte length prefix followed by that many bytes of
// binary data (MQTT "Binary Data" type).
func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, xerror.ErrMalformed
	}
	return buf, nil
}

// WriteBytes writes a 2-byte length prefix followed by b.
func WriteBytes(w io.Writer, b []byte) error {
	if len(b) > 0xFFFF {
		return xerror.ErrMalformed
	}
	if err := WriteUint16(w, uint16(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

// ReadString reads a 2-byte length prefix followed by that many bytes,
// returned as a string (MQTT "UTF-8 Encoded String" type, encoding not
// validated beyond length).
func ReadString(r io.Reader) (string, error) {
	b, err := ReadBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteString writes b as a 2-byte-length-prefixed UTF-8 string.
func WriteString(w io.Writer, b []byte) error {
	return WriteBytes(w, b)
}

// MaxVarIntBytes is the maximum number of bytes a variable-byte integer
// may occupy; a 5th continuation byte is malformed.
const MaxVarIntBytes = 4

// MaxVarIntValue is the largest value a 4-byte variable-byte integer
// can encode.
const MaxVarIntValue = 268435455

// ReadVarInt decodes an MQTT variable-byte integer: 1-4 bytes, low 7
// bits are payload, high bit is the continuation flag.
func ReadVarInt(r io.Reader) (uint32, error) {
	var (
		value      uint32
		multiplier uint32 = 1
	)
	for i := 0; i < MaxVarIntBytes; i++ {
		b, err := ReadByte(r)
		if err != nil {
			return 0, err
		}
		value += uint32(b&0x7F) * multiplier
		if b&0x80 == 0 {
			return value, nil
		}
		multiplier *= 128
	}
	return 0, xerror.ErrMalformed
}

// WriteVarInt encodes value as an MQTT variable-byte integer.
func WriteVarInt(w io.Writer, value uint32) error {
	buf, err := EncodeVarInt(value)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// EncodeVarInt returns the 1-4 byte encoding of value without writing
// it, so callers can pre-size an outer buffer.
func EncodeVarInt(value uint32) ([]byte, error) {
	if value > MaxVarIntValue {
		return nil, xerror.ErrMalformed
	}
	var out []byte
	for {
		b := byte(value % 128)
		value /= 128
		if value > 0 {
			b |= 0x80
		}
		out = append(out, b)
		if value == 0 {
			break
		}
	}
	return out, nil
}

// VarIntSize returns the number of bytes EncodeVarInt(value) would
// produce (1, 2, 3, or 4), without allocating.
func VarIntSize(value uint32) int {
	switch {
	case value < 128:
		return 1
	case value < 16384:
		return 2
	case value < 2097152:
		return 3
	default:
		return 4
	}
}
