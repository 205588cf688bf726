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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := Frame{Type: MsgPublish, Payload: []byte("hello cluster")}
	require.NoError(t, WriteFrame(&buf, want))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.Payload, got.Payload)
}

func TestFrameRoundTripEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Type: Heartbeat}))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, Heartbeat, got.Type)
	assert.Empty(t, got.Payload)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	header := []byte{byte(MsgPublish), 0xFF, 0xFF, 0xFF, 0xFF}
	buf.Write(header)

	_, err := ReadFrame(&buf)
	assert.Error(t, err)
}

func TestMessageTypeValues(t *testing.T) {
	assert.Equal(t, MessageType(0x01), Heartbeat)
	assert.Equal(t, MessageType(0x02), HandshakeRequest)
	assert.Equal(t, MessageType(0x03), HandshakeResponse)
	assert.Equal(t, MessageType(0x10), MsgPublish)
	assert.Equal(t, MessageType(0x20), MsgSubscribe)
	assert.Equal(t, MessageType(0x21), MsgUnsubscribe)
	assert.Equal(t, MessageType(0x30), NodeLeave)
	assert.Equal(t, MessageType(0x40), DiscoverRequest)
	assert.Equal(t, MessageType(0x41), DiscoverResponse)
	assert.Equal(t, MessageType(0x50), RetainedSyncRequest)
	assert.Equal(t, MessageType(0x51), RetainedSyncData)
}
