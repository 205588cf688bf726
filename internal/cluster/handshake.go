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

// Handshake carries the fields exchanged on both HandshakeRequest and
// HandshakeResponse frames (spec §4.6): protocol version, the peer's
// identity, the cluster it claims to belong to, and where it can be
// reached for inbound reconnects.
type Handshake struct {
	ProtocolVersion byte
	NodeID          string
	ClusterName     string
	ListenPort      uint16
	NodeAddress     string
	Timestamp       int64
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Encode serializes h for transmission as a HandshakeRequest or
// HandshakeResponse payload.
func (h Handshake) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(h.ProtocolVersion)
	writeString(&buf, h.NodeID)
	writeString(&buf, h.ClusterName)
	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], h.ListenPort)
	buf.Write(portBuf[:])
	writeString(&buf, h.NodeAddress)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(h.Timestamp))
	buf.Write(tsBuf[:])
	return buf.Bytes()
}

// DecodeHandshake parses the bytes Encode produces.
func DecodeHandshake(data []byte) (Handshake, error) {
	r := bytes.NewReader(data)
	var h Handshake

	version, err := r.ReadByte()
	if err != nil {
		return h, fmt.Errorf("cluster: handshake protocol version: %w", err)
	}
	h.ProtocolVersion = version

	if h.NodeID, err = readString(r); err != nil {
		return h, fmt.Errorf("cluster: handshake node id: %w", err)
	}
	if h.ClusterName, err = readString(r); err != nil {
		return h, fmt.Errorf("cluster: handshake cluster name: %w", err)
	}
	var port uint16
	if err = binary.Read(r, binary.BigEndian, &port); err != nil {
		return h, fmt.Errorf("cluster: handshake listen port: %w", err)
	}
	h.ListenPort = port
	if h.NodeAddress, err = readString(r); err != nil {
		return h, fmt.Errorf("cluster: handshake node address: %w", err)
	}
	var ts uint64
	if err = binary.Read(r, binary.BigEndian, &ts); err != nil {
		return h, fmt.Errorf("cluster: handshake timestamp: %w", err)
	}
	h.Timestamp = int64(ts)
	return h, nil
}
