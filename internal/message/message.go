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

// Package message defines the broker-internal ApplicationMessage value
// type, the unit of data that flows from PacketCodec through
// MessagePipeline to SubscriptionRouter fan-out (spec §3).
package message

import "time"

// SourceProtocol tags where an ApplicationMessage originated, so hooks
// and cluster/bridge loop-suppression can tell client traffic from
// traffic this broker itself injected.
type SourceProtocol byte

const (
	SourceClient SourceProtocol = iota
	SourceCluster
	SourceBridge
	SourceMQTTSN
)

func (s SourceProtocol) String() string {
	switch s {
	case SourceClient:
		return "client"
	case SourceCluster:
		return "cluster"
	case SourceBridge:
		return "bridge"
	case SourceMQTTSN:
		return "mqtt-sn"
	default:
		return "unknown"
	}
}

// UserProperty is an ordered, possibly-duplicated v5 name/value pair.
type UserProperty struct {
	Name  string
	Value string
}

// ApplicationMessage is the broker's internal representation of a
// published message; its Payload buffer is shared, not copied, across
// fan-out to multiple recipients (spec §9 "Ref-counted payloads").
type ApplicationMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool

	SourceProtocol SourceProtocol
	SourceClientID string
	PublishTime    time.Time

	// v5-only optional fields.
	PayloadFormatIndicator *byte
	MessageExpiryInterval  *uint32
	TopicAlias             *uint16
	ResponseTopic          string
	CorrelationData        []byte
	ContentType            string
	SubscriptionIDs        []uint32
	UserProperties         []UserProperty
}

// Clone returns a shallow copy sharing the Payload backing array; used
// when a per-recipient copy needs distinct QoS/Retain/packet-id without
// duplicating the payload bytes.
func (m *ApplicationMessage) Clone() *ApplicationMessage {
	cp := *m
	return &cp
}

// IsDeleteRetained reports whether m represents a retained-message
// deletion: retain=true with an empty payload (spec §3 RetainedStore).
func (m *ApplicationMessage) IsDeleteRetained() bool {
	return m.Retain && len(m.Payload) == 0
}
