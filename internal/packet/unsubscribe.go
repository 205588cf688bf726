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

// Unsubscribe represents the MQTT UNSUBSCRIBE packet.
type Unsubscribe struct {
	Version      Version
	PacketId     uint16
	Properties   *Properties
	TopicFilters [][]byte
}

func NewUnsubscribe(fixedHeader *FixedHeader, version Version, r io.Reader) (*Unsubscribe, error) {
	if fixedHeader.Flags != FixedHeaderFlagUnsubscribe {
		return nil, xerror.ErrProtocolViolation
	}
	u := &Unsubscribe{Version: version}
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
	u.PacketId = pid
	if IsVersion5(version) {
		u.Properties, err = ReadProperties(UNSUBSCRIBE, buf)
		if err != nil {
			return nil, err
		}
	}
	for buf.Len() > 0 {
		filter, err := UTF8DecodedStrings(true, buf)
		if err != nil {
			return nil, err
		}
		u.TopicFilters = append(u.TopicFilters, filter)
	}
	if len(u.TopicFilters) == 0 {
		return nil, xerror.ErrMalformed
	}
	return u, nil
}

func (u *Unsubscribe) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := writeUint16(buf, u.PacketId); err != nil {
		return err
	}
	if IsVersion5(u.Version) {
		if err := WriteProperties(buf, u.Properties); err != nil {
			return err
		}
	}
	for _, f := range u.TopicFilters {
		fb, _, err := UTF8EncodedStrings(f)
		if err != nil {
			return err
		}
		buf.Write(fb)
	}
	return encode(&FixedHeader{PacketType: UNSUBSCRIBE, Flags: FixedHeaderFlagUnsubscribe}, buf, w)
}

// Unsuback acknowledges UNSUBSCRIBE. v3.1.1 carries no reason codes;
// v5 carries one per requested filter.
type Unsuback struct {
	Version    Version
	PacketId   uint16
	Properties *Properties
	Codes      []code.Code // empty on v3.1.1
}

func NewUnsuback(fixedHeader *FixedHeader, version Version, r io.Reader) (*Unsuback, error) {
	u := &Unsuback{Version: version}
	restBuffer := make([]byte, fixedHeader.RemainLength)
	if _, err := io.ReadFull(r, restBuffer); err != nil {
		return nil, xerror.ErrMalformed
	}
	buf := bytes.NewBuffer(restBuffer)
	pid, err := readUint16(buf)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	u.PacketId = pid
	if IsVersion5(version) {
		u.Properties, err = ReadProperties(UNSUBACK, buf)
		if err != nil {
			return nil, err
		}
		for buf.Len() > 0 {
			b, err := buf.ReadByte()
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			u.Codes = append(u.Codes, code.Code(b))
		}
	}
	return u, nil
}

func (u *Unsuback) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := writeUint16(buf, u.PacketId); err != nil {
		return err
	}
	if IsVersion5(u.Version) {
		if err := WriteProperties(buf, u.Properties); err != nil {
			return err
		}
		for _, c := range u.Codes {
			buf.WriteByte(byte(c))
		}
	}
	return encode(&FixedHeader{PacketType: UNSUBACK, Flags: FixedHeaderFlagReserved}, buf, w)
}
