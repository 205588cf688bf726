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

package packet

import (
	"bytes"
	"io"

	"github.com/yunqi/lighthouse/internal/code"
	"github.com/yunqi/lighthouse/internal/xerror"
)

// Ack is the shared shape of PUBACK, PUBREC, PUBREL and PUBCOMP: a
// packet-id, and on v5 an optional reason code + property block (both
// omitted when the reason is Success and there are no properties).
type Ack struct {
	Type        PacketType
	Version     Version
	PacketId    uint16
	Code        code.Code
	Properties  *Properties
	hasReasonV5 bool
}

func parseAck(t PacketType, fixedHeader *FixedHeader, version Version, r io.Reader) (*Ack, error) {
	if t == PUBREL && fixedHeader.Flags != FixedHeaderFlagPubrel {
		return nil, xerror.ErrProtocolViolation
	}
	a := &Ack{Type: t, Version: version}
	restBuffer := make([]byte, fixedHeader.RemainLength)
	if _, err := io.ReadFull(r, restBuffer); err != nil {
		return nil, xerror.ErrMalformed
	}
	buf := bytes.NewBuffer(restBuffer)
	pid, err := readUint16(buf)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	if pid == 0 {
		return nil, xerror.ErrMalformed
	}
	a.PacketId = pid
	a.Code = code.Success

	if IsVersion5(version) && buf.Len() > 0 {
		a.hasReasonV5 = true
		reasonByte, err := buf.ReadByte()
		if err != nil {
			return nil, xerror.ErrMalformed
		}
		a.Code = code.Code(reasonByte)
		if buf.Len() > 0 {
			a.Properties, err = ReadProperties(t, buf)
			if err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

func (a *Ack) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := writeUint16(buf, a.PacketId); err != nil {
		return err
	}
	if IsVersion5(a.Version) && (a.Code != code.Success || a.Properties != nil && len(a.Properties.Entries()) > 0) {
		buf.WriteByte(byte(a.Code))
		if err := WriteProperties(buf, a.Properties); err != nil {
			return err
		}
	}
	flags := FixedHeaderFlagReserved
	if a.Type == PUBREL {
		flags = FixedHeaderFlagPubrel
	}
	return encode(&FixedHeader{PacketType: a.Type, Flags: flags}, buf, w)
}

func NewPuback(fixedHeader *FixedHeader, version Version, r io.Reader) (*Ack, error) {
	return parseAck(PUBACK, fixedHeader, version, r)
}

func NewPubrec(fixedHeader *FixedHeader, version Version, r io.Reader) (*Ack, error) {
	return parseAck(PUBREC, fixedHeader, version, r)
}

func NewPubrel(fixedHeader *FixedHeader, version Version, r io.Reader) (*Ack, error) {
	return parseAck(PUBREL, fixedHeader, version, r)
}

func NewPubcomp(fixedHeader *FixedHeader, version Version, r io.Reader) (*Ack, error) {
	return parseAck(PUBCOMP, fixedHeader, version, r)
}

// NewAck builds an outbound ack of the given type, ready to Encode.
func NewAck(t PacketType, version Version, packetId uint16, cd code.Code) *Ack {
	return &Ack{Type: t, Version: version, PacketId: packetId, Code: cd}
}
