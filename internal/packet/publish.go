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

	"github.com/yunqi/lighthouse/internal/xerror"
)

// Publish fixed-header flag bit positions.
const (
	PublishFlagRetain byte = 0x01
	PublishFlagQoS    byte = 0x06 // bits 1-2
	PublishFlagDup    byte = 0x08
)

// Publish represents the MQTT PUBLISH packet.
type Publish struct {
	Version     Version
	FixedHeader *FixedHeader

	Dup      bool
	QoS      byte
	Retain   bool
	Topic    []byte
	PacketId uint16 // only meaningful when QoS > 0

	Properties *Properties
	Payload    []byte
}

// NewPublish parses a PUBLISH body.
func NewPublish(fixedHeader *FixedHeader, version Version, r io.Reader) (*Publish, error) {
	p := &Publish{Version: version, FixedHeader: fixedHeader}
	p.Dup = fixedHeader.Flags&PublishFlagDup != 0
	p.QoS = (fixedHeader.Flags & PublishFlagQoS) >> 1
	p.Retain = fixedHeader.Flags&PublishFlagRetain != 0
	if p.QoS > 2 {
		return nil, xerror.ErrProtocolViolation
	}
	if p.QoS == 0 && p.Dup {
		// [MQTT-3.3.1-2] DUP must be 0 for QoS 0.
		return nil, xerror.ErrMalformed
	}

	restBuffer := make([]byte, fixedHeader.RemainLength)
	if _, err := io.ReadFull(r, restBuffer); err != nil {
		return nil, xerror.ErrMalformed
	}
	buf := bytes.NewBuffer(restBuffer)

	topic, err := UTF8DecodedStrings(true, buf)
	if err != nil {
		return nil, err
	}
	if len(topic) == 0 && !IsVersion5(version) {
		return nil, xerror.ErrMalformed
	}
	p.Topic = topic

	if p.QoS > 0 {
		p.PacketId, err = readUint16(buf)
		if err != nil {
			return nil, xerror.ErrMalformed
		}
		if p.PacketId == 0 {
			return nil, xerror.ErrMalformed
		}
	}

	if IsVersion5(version) {
		p.Properties, err = ReadProperties(PUBLISH, buf)
		if err != nil {
			return nil, err
		}
	}

	p.Payload = append([]byte(nil), buf.Bytes()...)
	return p, nil
}

// Encode writes the full PUBLISH packet.
func (p *Publish) Encode(w io.Writer) error {
	flags := p.QoS << 1
	if p.Dup {
		flags |= PublishFlagDup
	}
	if p.Retain {
		flags |= PublishFlagRetain
	}

	buf := &bytes.Buffer{}
	topicBytes, _, err := UTF8EncodedStrings(p.Topic)
	if err != nil {
		return err
	}
	buf.Write(topicBytes)
	if p.QoS > 0 {
		if err := writeUint16(buf, p.PacketId); err != nil {
			return err
		}
	}
	if IsVersion5(p.Version) {
		if err := WriteProperties(buf, p.Properties); err != nil {
			return err
		}
	}
	buf.Write(p.Payload)

	return encode(&FixedHeader{PacketType: PUBLISH, Flags: flags}, buf, w)
}

// Copy returns a shallow copy of p suitable for per-recipient mutation
// of QoS/Retain/PacketId while sharing the same Topic/Payload buffers.
func (p *Publish) Copy() *Publish {
	cp := *p
	return &cp
}
