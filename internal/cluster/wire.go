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

// Package cluster implements the peer-to-peer gossip overlay a broker
// node uses to propagate publishes, subscription-existence and
// retained state to its siblings (spec §4.6).
package cluster

import (
	"encoding/binary"
	"io"

	"github.com/yunqi/lighthouse/internal/xerror"
)

// MessageType tags a cluster wire frame.
type MessageType byte

const (
	Heartbeat           MessageType = 0x01
	HandshakeRequest    MessageType = 0x02
	HandshakeResponse   MessageType = 0x03
	MsgPublish          MessageType = 0x10
	MsgSubscribe        MessageType = 0x20
	MsgUnsubscribe      MessageType = 0x21
	NodeLeave           MessageType = 0x30
	DiscoverRequest     MessageType = 0x40
	DiscoverResponse    MessageType = 0x41
	RetainedSyncRequest MessageType = 0x50
	RetainedSyncData    MessageType = 0x51
)

// ProtocolVersion is the cluster wire protocol version byte carried in
// the handshake; bumping it is a breaking change.
const ProtocolVersion = 1

// MaxFrameLength bounds a single frame's payload to guard against a
// corrupt length prefix causing an enormous allocation.
const MaxFrameLength = 256 << 20

// Frame is one `{type, length, payload}` cluster wire message.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// WriteFrame writes f as `{1 byte type, 4 bytes big-endian length,
// payload}`, per spec §4.6 wire framing.
func WriteFrame(w io.Writer, f Frame) error {
	header := make([]byte, 5)
	header[0] = byte(f.Type)
	binary.BigEndian.PutUint32(header[1:], uint32(len(f.Payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(f.Payload) == 0 {
		return nil
	}
	_, err := w.Write(f.Payload)
	return err
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, err
	}
	length := binary.BigEndian.Uint32(header[1:])
	if length > MaxFrameLength {
		return Frame{}, xerror.ErrMalformed
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Type: MessageType(header[0]), Payload: payload}, nil
}
