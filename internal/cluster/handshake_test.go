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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeRoundTrip(t *testing.T) {
	want := Handshake{
		ProtocolVersion: ProtocolVersion,
		NodeID:          "node-a",
		ClusterName:     "prod-cluster",
		ListenPort:      11883,
		NodeAddress:     "10.0.0.5",
		Timestamp:       1700000000,
	}
	got, err := DecodeHandshake(want.Encode())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHandshakeRoundTripEmptyAddress(t *testing.T) {
	want := Handshake{ProtocolVersion: 1, NodeID: "n", ClusterName: "c", ListenPort: 1}
	got, err := DecodeHandshake(want.Encode())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSubscriptionEnvelopeRoundTrip(t *testing.T) {
	want := SubscriptionEnvelope{SourceNode: "node-a", Filter: "sensors/+/temp"}
	got, err := DecodeSubscriptionEnvelope(want.Encode())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPublishEnvelopeRoundTrip(t *testing.T) {
	want := PublishEnvelope{
		SourceNode: "node-a",
		Topic:      "a/b/c",
		QoS:        1,
		Retain:     true,
		WallTicks:  123456,
		Payload:    []byte("hello"),
	}
	got, err := DecodePublishEnvelope(want.Encode())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, want.Fingerprint(), got.Fingerprint())
}
