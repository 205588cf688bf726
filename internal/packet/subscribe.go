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

// Subscription is one {topic-filter, options} entry of a SUBSCRIBE
// payload. NoLocal/RetainAsPublished/RetainHandling are v5-only; parsing
// preserves them even though dispatch (spec §4.4) ignores them.
type Subscription struct {
	TopicFilter        []byte
	QoS                byte
	NoLocal            bool
	RetainAsPublished  bool
	RetainHandling     byte
}

// Subscribe represents the MQTT SUBSCRIBE packet.
type Subscribe struct {
	Version       Version
	PacketId      uint16
	Properties    *Properties
	Subscriptions []Subscription
}

func NewSubscribe(fixedHeader *FixedHeader, version Version, r io.Reader) (*Subscribe, error) {
	if fixedHeader.Flags != FixedHeaderFlagSubscribe {
		return nil, xerror.ErrProtocolViolation
	}
	s := &Subscribe{Version: version}
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
	s.PacketId = pid

	if IsVersion5(version) {
		s.Properties, err = ReadProperties(SUBSCRIBE, buf)
		if err != nil {
			return nil, err
		}
	}

	for buf.Len() > 0 {
		filter, err := UTF8DecodedStrings(true, buf)
		if err != nil {
			return nil, err
		}
		optByte, err := buf.ReadByte()
		if err != nil {
			return nil, xerror.ErrMalformed
		}
		sub := Subscription{
			TopicFilter:       filter,
			QoS:               optByte & 0x03,
			NoLocal:           optByte&0x04 != 0,
			RetainAsPublished: optByte&0x08 != 0,
			RetainHandling:    (optByte & 0x30) >> 4,
		}
		if sub.QoS > 2 {
			return nil, xerror.ErrMalformed
		}
		s.Subscriptions = append(s.Subscriptions, sub)
	}
	if len(s.Subscriptions) == 0 {
		// [MQTT-3.8.3-3] at least one topic filter is required.
		return nil, xerror.ErrMalformed
	}
	return s, nil
}

func (s *Subscribe) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := writeUint16(buf, s.PacketId); err != nil {
		return err
	}
	if IsVersion5(s.Version) {
		if err := WriteProperties(buf, s.Properties); err != nil {
			return err
		}
	}
	for _, sub := range s.Subscriptions {
		filterBytes, _, err := UTF8EncodedStrings(sub.TopicFilter)
		if err != nil {
			return err
		}
		buf.Write(filterBytes)
		opts := sub.QoS & 0x03
		if sub.NoLocal {
			opts |= 0x04
		}
		if sub.RetainAsPublished {
			opts |= 0x08
		}
		opts |= (sub.RetainHandling & 0x03) << 4
		buf.WriteByte(opts)
	}
	return encode(&FixedHeader{PacketType: SUBSCRIBE, Flags: FixedHeaderFlagSubscribe}, buf, w)
}

// Suback is the SUBSCRIBE acknowledgement: one reason code per
// requested filter, in request order.
type Suback struct {
	Version    Version
	PacketId   uint16
	Properties *Properties
	Codes      []code.Code
}

func NewSuback(fixedHeader *FixedHeader, version Version, r io.Reader) (*Suback, error) {
	s := &Suback{Version: version}
	restBuffer := make([]byte, fixedHeader.RemainLength)
	if _, err := io.ReadFull(r, restBuffer); err != nil {
		return nil, xerror.ErrMalformed
	}
	buf := bytes.NewBuffer(restBuffer)
	pid, err := readUint16(buf)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	s.PacketId = pid
	if IsVersion5(version) {
		s.Properties, err = ReadProperties(SUBACK, buf)
		if err != nil {
			return nil, err
		}
	}
	for buf.Len() > 0 {
		b, err := buf.ReadByte()
		if err != nil {
			return nil, xerror.ErrMalformed
		}
		s.Codes = append(s.Codes, code.Code(b))
	}
	return s, nil
}

func (s *Suback) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := writeUint16(buf, s.PacketId); err != nil {
		return err
	}
	if IsVersion5(s.Version) {
		if err := WriteProperties(buf, s.Properties); err != nil {
			return err
		}
	}
	for _, c := range s.Codes {
		buf.WriteByte(byte(c))
	}
	return encode(&FixedHeader{PacketType: SUBACK, Flags: FixedHeaderFlagReserved}, buf, w)
}
