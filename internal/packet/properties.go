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

	"github.com/yunqi/lighthouse/internal/binary"
	"github.com/yunqi/lighthouse/internal/xerror"
)

// PropertyID identifies a v5 property-block entry.
type PropertyID byte

const (
	PropPayloadFormatIndicator     PropertyID = 0x01
	PropMessageExpiryInterval      PropertyID = 0x02
	PropContentType                PropertyID = 0x03
	PropResponseTopic              PropertyID = 0x08
	PropCorrelationData            PropertyID = 0x09
	PropSubscriptionIdentifier     PropertyID = 0x0B
	PropSessionExpiryInterval      PropertyID = 0x11
	PropAssignedClientIdentifier   PropertyID = 0x12
	PropServerKeepAlive            PropertyID = 0x13
	PropAuthenticationMethod       PropertyID = 0x15
	PropAuthenticationData         PropertyID = 0x16
	PropRequestProblemInformation  PropertyID = 0x17
	PropWillDelayInterval          PropertyID = 0x18
	PropRequestResponseInformation PropertyID = 0x19
	PropResponseInformation        PropertyID = 0x1A
	PropServerReference            PropertyID = 0x1C
	PropReasonString               PropertyID = 0x1F
	PropReceiveMaximum             PropertyID = 0x21
	PropTopicAliasMaximum          PropertyID = 0x22
	PropTopicAlias                 PropertyID = 0x23
	PropMaximumQoS                 PropertyID = 0x24
	PropRetainAvailable            PropertyID = 0x25
	PropUserProperty               PropertyID = 0x26
	PropMaximumPacketSize          PropertyID = 0x27
	PropWildcardSubAvailable       PropertyID = 0x28
	PropSubscriptionIDAvailable    PropertyID = 0x29
	PropSharedSubAvailable         PropertyID = 0x2A
)

type propKind byte

const (
	kindByte propKind = iota
	kindU16
	kindU32
	kindVarInt
	kindString
	kindBinary
	kindStringPair
)

var propertyKinds = map[PropertyID]propKind{
	PropPayloadFormatIndicator:     kindByte,
	PropMessageExpiryInterval:      kindU32,
	PropContentType:                kindString,
	PropResponseTopic:              kindString,
	PropCorrelationData:            kindBinary,
	PropSubscriptionIdentifier:     kindVarInt,
	PropSessionExpiryInterval:      kindU32,
	PropAssignedClientIdentifier:   kindString,
	PropServerKeepAlive:            kindU16,
	PropAuthenticationMethod:       kindString,
	PropAuthenticationData:         kindBinary,
	PropRequestProblemInformation:  kindByte,
	PropWillDelayInterval:          kindU32,
	PropRequestResponseInformation: kindByte,
	PropResponseInformation:        kindString,
	PropServerReference:            kindString,
	PropReasonString:               kindString,
	PropReceiveMaximum:             kindU16,
	PropTopicAliasMaximum:          kindU16,
	PropTopicAlias:                 kindU16,
	PropMaximumQoS:                 kindByte,
	PropRetainAvailable:            kindByte,
	PropUserProperty:               kindStringPair,
	PropMaximumPacketSize:          kindU32,
	PropWildcardSubAvailable:       kindByte,
	PropSubscriptionIDAvailable:    kindByte,
	PropSharedSubAvailable:         kindByte,
}

// UserProperty is one ordered, possibly-duplicated name/value pair.
type UserProperty struct {
	Name  string
	Value string
}

// Property is one entry of a decoded property block, in wire order.
type Property struct {
	ID         PropertyID
	Byte       byte
	U16        uint16
	U32        uint32
	VarInt     uint32
	String     string
	Binary     []byte
	UserProp   UserProperty
}

// Properties is the ordered, possibly-repeating sequence of property
// entries attached to a v5 packet.
type Properties struct {
	entries []Property
}

// NewProperties returns an empty property block.
func NewProperties() *Properties { return &Properties{} }

// add appends a raw entry; used by the typed setters below.
func (p *Properties) add(e Property) { p.entries = append(p.entries, e) }

func (p *Properties) SetByte(id PropertyID, v byte)     { p.add(Property{ID: id, Byte: v}) }
func (p *Properties) SetU16(id PropertyID, v uint16)    { p.add(Property{ID: id, U16: v}) }
func (p *Properties) SetU32(id PropertyID, v uint32)    { p.add(Property{ID: id, U32: v}) }
func (p *Properties) SetVarInt(id PropertyID, v uint32) { p.add(Property{ID: id, VarInt: v}) }
func (p *Properties) SetString(id PropertyID, v string) { p.add(Property{ID: id, String: v}) }
func (p *Properties) SetBinary(id PropertyID, v []byte) { p.add(Property{ID: id, Binary: v}) }
func (p *Properties) AddUserProperty(name, value string) {
	p.add(Property{ID: PropUserProperty, UserProp: UserProperty{Name: name, Value: value}})
}

// Entries returns the decoded entries in wire order.
func (p *Properties) Entries() []Property {
	if p == nil {
		return nil
	}
	return p.entries
}

// Get returns the first entry with id, if any.
func (p *Properties) Get(id PropertyID) (Property, bool) {
	if p == nil {
		return Property{}, false
	}
	for _, e := range p.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Property{}, false
}

// UserProperties returns all user-property entries in order, duplicates
// included.
func (p *Properties) UserProperties() []UserProperty {
	if p == nil {
		return nil
	}
	var out []UserProperty
	for _, e := range p.entries {
		if e.ID == PropUserProperty {
			out = append(out, e.UserProp)
		}
	}
	return out
}

// allowedProperties enumerates the legal property ids per packet kind;
// an id outside this set is a MalformedPacket per spec.
var allowedProperties = map[PacketType]map[PropertyID]bool{
	CONNECT: setOf(PropSessionExpiryInterval, PropAuthenticationMethod, PropAuthenticationData,
		PropRequestProblemInformation, PropRequestResponseInformation, PropReceiveMaximum,
		PropTopicAliasMaximum, PropUserProperty, PropMaximumPacketSize),
	CONNACK: setOf(PropSessionExpiryInterval, PropAssignedClientIdentifier, PropServerKeepAlive,
		PropAuthenticationMethod, PropAuthenticationData, PropResponseInformation,
		PropServerReference, PropReasonString, PropReceiveMaximum, PropTopicAliasMaximum,
		PropMaximumQoS, PropRetainAvailable, PropUserProperty, PropMaximumPacketSize,
		PropWildcardSubAvailable, PropSubscriptionIDAvailable, PropSharedSubAvailable),
	PUBLISH: setOf(PropPayloadFormatIndicator, PropMessageExpiryInterval, PropContentType,
		PropResponseTopic, PropCorrelationData, PropSubscriptionIdentifier, PropTopicAlias,
		PropUserProperty),
	PUBACK:      setOf(PropReasonString, PropUserProperty),
	PUBREC:      setOf(PropReasonString, PropUserProperty),
	PUBREL:      setOf(PropReasonString, PropUserProperty),
	PUBCOMP:     setOf(PropReasonString, PropUserProperty),
	SUBSCRIBE:   setOf(PropSubscriptionIdentifier, PropUserProperty),
	SUBACK:      setOf(PropReasonString, PropUserProperty),
	UNSUBSCRIBE: setOf(PropUserProperty),
	UNSUBACK:    setOf(PropReasonString, PropUserProperty),
	DISCONNECT: setOf(PropSessionExpiryInterval, PropServerReference, PropReasonString,
		PropUserProperty),
	AUTH: setOf(PropAuthenticationMethod, PropAuthenticationData, PropReasonString, PropUserProperty),
}

func setOf(ids ...PropertyID) map[PropertyID]bool {
	m := make(map[PropertyID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// ReadProperties decodes a v5 property block: a leading variable-byte
// integer total length, then {id, value} entries until that many bytes
// are consumed. An id not legal for pt is MalformedPacket.
func ReadProperties(pt PacketType, r io.Reader) (*Properties, error) {
	length, err := binary.ReadVarInt(r)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	props := NewProperties()
	if length == 0 {
		return props, nil
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, xerror.ErrMalformed
	}
	buf := bytes.NewBuffer(body)
	allowed := allowedProperties[pt]
	for buf.Len() > 0 {
		idByte, err := buf.ReadByte()
		if err != nil {
			return nil, xerror.ErrMalformed
		}
		id := PropertyID(idByte)
		if allowed != nil && !allowed[id] {
			return nil, xerror.ErrMalformed
		}
		kind, ok := propertyKinds[id]
		if !ok {
			return nil, xerror.ErrMalformed
		}
		entry := Property{ID: id}
		switch kind {
		case kindByte:
			b, err := buf.ReadByte()
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			entry.Byte = b
		case kindU16:
			v, err := binary.ReadUint16(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			entry.U16 = v
		case kindU32:
			v, err := binary.ReadUint32(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			entry.U32 = v
		case kindVarInt:
			v, err := binary.ReadVarInt(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			entry.VarInt = v
		case kindString:
			v, err := binary.ReadString(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			entry.String = v
		case kindBinary:
			v, err := binary.ReadBytes(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			entry.Binary = v
		case kindStringPair:
			name, err := binary.ReadString(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			value, err := binary.ReadString(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			entry.UserProp = UserProperty{Name: name, Value: value}
		}
		props.add(entry)
	}
	return props, nil
}

// WriteProperties encodes props (nil treated as empty) as a v5 property
// block: variable-byte total length then the entries themselves.
func WriteProperties(w io.Writer, props *Properties) error {
	body := &bytes.Buffer{}
	for _, e := range props.Entries() {
		body.WriteByte(byte(e.ID))
		kind := propertyKinds[e.ID]
		switch kind {
		case kindByte:
			body.WriteByte(e.Byte)
		case kindU16:
			_ = binary.WriteUint16(body, e.U16)
		case kindU32:
			_ = binary.WriteUint32(body, e.U32)
		case kindVarInt:
			if err := binary.WriteVarInt(body, e.VarInt); err != nil {
				return err
			}
		case kindString:
			if err := binary.WriteString(body, []byte(e.String)); err != nil {
				return err
			}
		case kindBinary:
			if err := binary.WriteBytes(body, e.Binary); err != nil {
				return err
			}
		case kindStringPair:
			if err := binary.WriteString(body, []byte(e.UserProp.Name)); err != nil {
				return err
			}
			if err := binary.WriteString(body, []byte(e.UserProp.Value)); err != nil {
				return err
			}
		}
	}
	if err := binary.WriteVarInt(w, uint32(body.Len())); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}
