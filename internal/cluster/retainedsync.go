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

	"github.com/yunqi/lighthouse/internal/message"
)

// retainFlagBit marks a synced entry as retained; bits 0-1 carry QoS.
const retainFlagBit = 1 << 2

// EncodeRetainedBlock serializes msgs in the bit-exact format spec §6
// requires for RetainedSyncData, so a joining node's replay is
// byte-for-byte reproducible regardless of which peer answered:
//
//	count:u32 BE
//	per entry: topic_len:u16 BE, topic bytes, flags:u8, pl_len:u32 BE, payload bytes
func EncodeRetainedBlock(msgs []*message.ApplicationMessage) []byte {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(msgs)))
	buf.Write(countBuf[:])

	for _, m := range msgs {
		topic := []byte(m.Topic)
		var topicLen [2]byte
		binary.BigEndian.PutUint16(topicLen[:], uint16(len(topic)))
		buf.Write(topicLen[:])
		buf.Write(topic)

		flags := m.QoS & 0x03
		if m.Retain {
			flags |= retainFlagBit
		}
		buf.WriteByte(flags)

		var plLen [4]byte
		binary.BigEndian.PutUint32(plLen[:], uint32(len(m.Payload)))
		buf.Write(plLen[:])
		buf.Write(m.Payload)
	}
	return buf.Bytes()
}

// DecodeRetainedBlock parses the format EncodeRetainedBlock produces.
func DecodeRetainedBlock(data []byte) ([]*message.ApplicationMessage, error) {
	r := bytes.NewReader(data)

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("cluster: retained block count: %w", err)
	}

	out := make([]*message.ApplicationMessage, 0, count)
	for i := uint32(0); i < count; i++ {
		var topicLen uint16
		if err := binary.Read(r, binary.BigEndian, &topicLen); err != nil {
			return nil, fmt.Errorf("cluster: retained block topic length: %w", err)
		}
		topic := make([]byte, topicLen)
		if _, err := io.ReadFull(r, topic); err != nil {
			return nil, fmt.Errorf("cluster: retained block topic: %w", err)
		}

		flags, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("cluster: retained block flags: %w", err)
		}

		var plLen uint32
		if err := binary.Read(r, binary.BigEndian, &plLen); err != nil {
			return nil, fmt.Errorf("cluster: retained block payload length: %w", err)
		}
		payload := make([]byte, plLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("cluster: retained block payload: %w", err)
		}

		out = append(out, &message.ApplicationMessage{
			Topic:          string(topic),
			Payload:        payload,
			QoS:            flags & 0x03,
			Retain:         flags&retainFlagBit != 0,
			SourceProtocol: message.SourceCluster,
		})
	}
	return out, nil
}
