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

// Package xerror defines the broker's error taxonomy. Errors here are
// kinds, not wire codes; callers map them to CONNACK/PUBACK/DISCONNECT
// reason codes at the protocol boundary.
package xerror

import "errors"

var (
	// ErrMalformed means the packet bytes could not be decoded:
	// variable-byte-integer overflow, remaining-length mismatch,
	// illegal property id, or a string/binary length past the buffer.
	ErrMalformed = errors.New("lighthouse: malformed packet")

	// ErrV3UnacceptableProtocolVersion is returned when the CONNECT
	// protocol level byte names a version this broker does not serve.
	ErrV3UnacceptableProtocolVersion = errors.New("lighthouse: unacceptable protocol version")

	// ErrV3IdentifierRejected is returned for an empty client-id with
	// CleanSession=false on MQTT 3.1.1, per [MQTT-3.1.3-8].
	ErrV3IdentifierRejected = errors.New("lighthouse: identifier rejected")

	// ErrProtocolViolation covers wrong fixed-header flags, a CONNECT
	// received twice on one connection, or a publish with qos=3.
	ErrProtocolViolation = errors.New("lighthouse: protocol violation")

	// ErrTopicAliasInvalid is returned when an inbound v5 PUBLISH names
	// a topic alias the session has not previously recorded.
	ErrTopicAliasInvalid = errors.New("lighthouse: topic alias invalid")

	// ErrMessageTooLarge is returned when a packet's size exceeds the
	// broker's configured maximum.
	ErrMessageTooLarge = errors.New("lighthouse: message too large")

	// ErrUnauthorizedConnect is returned when CONNECT fails
	// authentication or anonymous access is disallowed.
	ErrUnauthorizedConnect = errors.New("lighthouse: unauthorized connect")

	// ErrUnauthorizedAction is returned when a publish or subscribe is
	// denied by the Authorizer.
	ErrUnauthorizedAction = errors.New("lighthouse: unauthorized action")

	// ErrTransportClosed is a graceful EOF on the transport connection.
	ErrTransportClosed = errors.New("lighthouse: transport closed")

	// ErrClusterPeerError marks a cluster peer connection failure.
	ErrClusterPeerError = errors.New("lighthouse: cluster peer error")

	// ErrBridgeTransportError marks a bridge connection failure.
	ErrBridgeTransportError = errors.New("lighthouse: bridge transport error")

	// ErrSessionNotFound is returned when a client-id has no live or
	// persistent session.
	ErrSessionNotFound = errors.New("lighthouse: session not found")

	// ErrClusterNameMismatch is returned when a cluster handshake names
	// a different cluster than this node belongs to.
	ErrClusterNameMismatch = errors.New("lighthouse: cluster name mismatch")

	// ErrSelfConnect is returned when a cluster peer handshake names
	// this node's own node-id.
	ErrSelfConnect = errors.New("lighthouse: refused self connection")
)
