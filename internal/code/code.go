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

// Package code carries the MQTT reason/return code enum shared by
// CONNACK, PUBACK/PUBREC/PUBREL/PUBCOMP, SUBACK/UNSUBACK and
// DISCONNECT across protocol versions.
package code

// Code is a protocol reason/return code. v3.1.1 packets only ever use
// the handful of values that predate v5; v5 packets use the full set.
type Code byte

const (
	Success                     Code = 0x00
	GrantedQoS0                 Code = 0x00
	GrantedQoS1                 Code = 0x01
	GrantedQoS2                 Code = 0x02
	DisconnectWithWillMessage   Code = 0x04
	NoMatchingSubscribers       Code = 0x10
	NoSubscriptionExisted       Code = 0x11
	UnspecifiedError            Code = 0x80
	MalformedPacket             Code = 0x81
	ProtocolError               Code = 0x82
	ImplementationSpecificError Code = 0x83
	UnsupportedProtocolVersion  Code = 0x84
	ClientIdentifierNotValid    Code = 0x85
	BadUsernameOrPassword       Code = 0x86
	NotAuthorized               Code = 0x87
	ServerUnavailable           Code = 0x88
	ServerBusy                  Code = 0x89
	Banned                      Code = 0x8A
	BadAuthenticationMethod     Code = 0x8C
	TopicFilterInvalid          Code = 0x8F
	TopicNameInvalid            Code = 0x90
	PacketIdentifierInUse       Code = 0x91
	PacketIdentifierNotFound    Code = 0x92
	PacketTooLarge              Code = 0x95
	QuotaExceeded               Code = 0x97
	PayloadFormatInvalid        Code = 0x99
	RetainNotSupported          Code = 0x9A
	QoSNotSupported             Code = 0x9B
	UseAnotherServer            Code = 0x9C
	ServerMoved                 Code = 0x9D
	SharedSubscriptionsNotSupported Code = 0x9E
	SubscriptionIdentifiersNotSupported Code = 0xA1
	WildcardSubscriptionsNotSupported   Code = 0xA2
	TopicAliasInvalid                   Code = 0x94

	// v3.1.1 CONNACK return codes, values shared with some v5 reason
	// codes by coincidence of the spec's numbering.
	V3UnacceptableProtocolVersion Code = 0x01
	V3IdentifierRejected          Code = 0x02
	V3ServerUnavailable           Code = 0x03
	V3BadUsernameOrPassword       Code = 0x04
	V3NotAuthorized               Code = 0x05

	// v3.1.1 SUBACK failure code.
	V3SubscribeFailure Code = 0x80
)
