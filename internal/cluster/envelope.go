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

package cluster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// PublishEnvelope is the MsgPublish payload. The fingerprint fields
// (SourceNode, Topic, WallTicks alongside the payload hash) are fixed
// at the originating node and carried unchanged across every hop, so
// every node that eventually sees this publish computes the identical
// Fingerprint and can dedup against it (spec §4.6).
type PublishEnvelope struct {
	SourceNode string
	Topic      string
	QoS        byte
	Retain     bool
	WallTicks  int64
	Payload    []byte
}

// Fingerprint returns this envelope's dedup key.
func (e PublishEnvelope) Fingerprint() string {
	return Fingerprint(e.SourceNode, e.Topic, e.Payload, e.WallTicks)
}

// Encode serializes e for a MsgPublish frame.
func (e PublishEnvelope) Encode() []byte {
	var buf bytes.Buffer
	writeString(&buf, e.SourceNode)
	writeString(&buf, e.Topic)
	flags := e.QoS & 0x03
	if e.Retain {
		flags |= retainFlagBit
	}
	buf.WriteByte(flags)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(e.WallTicks))
	buf.Write(tsBuf[:])
	var plLen [4]byte
	binary.BigEndian.PutUint32(plLen[:], uint32(len(e.Payload)))
	buf.Write(plLen[:])
	buf.Write(e.Payload)
	return buf.Bytes()
}

// DecodePublishEnvelope parses the bytes Encode produces.
func DecodePublishEnvelope(data []byte) (PublishEnvelope, error) {
	r := bytes.NewReader(data)
	var e PublishEnvelope
	var err error

	if e.SourceNode, err = readString(r); err != nil {
		return e, fmt.Errorf("cluster: publish envelope source node: %w", err)
	}
	if e.Topic, err = readString(r); err != nil {
		return e, fmt.Errorf("cluster: publish envelope topic: %w", err)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return e, fmt.Errorf("cluster: publish envelope flags: %w", err)
	}
	e.QoS = flags & 0x03
	e.Retain = flags&retainFlagBit != 0

	var ts uint64
	if err = binary.Read(r, binary.BigEndian, &ts); err != nil {
		return e, fmt.Errorf("cluster: publish envelope wall ticks: %w", err)
	}
	e.WallTicks = int64(ts)

	var plLen uint32
	if err = binary.Read(r, binary.BigEndian, &plLen); err != nil {
		return e, fmt.Errorf("cluster: publish envelope payload length: %w", err)
	}
	e.Payload = make([]byte, plLen)
	if _, err = io.ReadFull(r, e.Payload); err != nil {
		return e, fmt.Errorf("cluster: publish envelope payload: %w", err)
	}
	return e, nil
}

// SubscriptionEnvelope is the MsgSubscribe/MsgUnsubscribe payload,
// gossiped on a filter's first-subscriber/last-unsubscriber transition
// (spec §4.6) rather than per-client, so cluster traffic stays
// proportional to distinct filters rather than to subscriber count.
type SubscriptionEnvelope struct {
	SourceNode string
	Filter     string
}

// Encode serializes e for a MsgSubscribe/MsgUnsubscribe frame.
func (e SubscriptionEnvelope) Encode() []byte {
	var buf bytes.Buffer
	writeString(&buf, e.SourceNode)
	writeString(&buf, e.Filter)
	return buf.Bytes()
}

// DecodeSubscriptionEnvelope parses the bytes Encode produces.
func DecodeSubscriptionEnvelope(data []byte) (SubscriptionEnvelope, error) {
	r := bytes.NewReader(data)
	var e SubscriptionEnvelope
	var err error
	if e.SourceNode, err = readString(r); err != nil {
		return e, fmt.Errorf("cluster: subscription envelope source node: %w", err)
	}
	if e.Filter, err = readString(r); err != nil {
		return e, fmt.Errorf("cluster: subscription envelope filter: %w", err)
	}
	return e, nil
}
