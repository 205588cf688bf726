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
	"io"

	"github.com/yunqi/lighthouse/internal/xerror"
)

// Packet is anything the codec can serialize back to the wire.
type Packet interface {
	Encode(w io.Writer) error
}

// ProtocolHandler is the single dispatch point from a decoded fixed
// header to a typed packet. It replaces per-version handler objects
// with one pure match over PacketType, per spec §9 "Dynamic dispatch
// over protocol version".
type ProtocolHandler struct {
	Version Version
}

// NewProtocolHandler returns a handler bound to version.
func NewProtocolHandler(version Version) *ProtocolHandler {
	return &ProtocolHandler{Version: version}
}

// Parse decodes the packet body following fixedHeader from r into its
// typed representation. The CONNECT packet is special-cased by callers
// (session manager) since it determines Version before a handler
// exists; Parse is used for every packet after the handshake.
func (h *ProtocolHandler) Parse(fixedHeader *FixedHeader, r io.Reader) (Packet, error) {
	switch fixedHeader.PacketType {
	case CONNECT:
		return NewConnect(fixedHeader, h.Version, r)
	case CONNACK:
		return NewConnack(fixedHeader, h.Version, r)
	case PUBLISH:
		return NewPublish(fixedHeader, h.Version, r)
	case PUBACK:
		return NewPuback(fixedHeader, h.Version, r)
	case PUBREC:
		return NewPubrec(fixedHeader, h.Version, r)
	case PUBREL:
		return NewPubrel(fixedHeader, h.Version, r)
	case PUBCOMP:
		return NewPubcomp(fixedHeader, h.Version, r)
	case SUBSCRIBE:
		return NewSubscribe(fixedHeader, h.Version, r)
	case SUBACK:
		return NewSuback(fixedHeader, h.Version, r)
	case UNSUBSCRIBE:
		return NewUnsubscribe(fixedHeader, h.Version, r)
	case UNSUBACK:
		return NewUnsuback(fixedHeader, h.Version, r)
	case PINGREQ:
		return NewPingreq(fixedHeader, h.Version, r)
	case PINGRESP:
		return NewPingresp(fixedHeader, h.Version, r)
	case DISCONNECT:
		return NewDisconnect(fixedHeader, h.Version, r)
	case AUTH:
		return NewAuth(fixedHeader, h.Version, r)
	default:
		return nil, xerror.ErrMalformed
	}
}
