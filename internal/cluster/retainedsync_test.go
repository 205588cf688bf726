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

	"github.com/yunqi/lighthouse/internal/message"
)

func TestRetainedBlockRoundTrip(t *testing.T) {
	msgs := []*message.ApplicationMessage{
		{Topic: "a/b", Payload: []byte("hello"), QoS: 1, Retain: true},
		{Topic: "c/d", Payload: []byte{}, QoS: 0, Retain: true},
		{Topic: "e/f/g", Payload: []byte("binary\x00data"), QoS: 2, Retain: true},
	}

	encoded := EncodeRetainedBlock(msgs)
	decoded, err := DecodeRetainedBlock(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 3)

	for i, m := range msgs {
		assert.Equal(t, m.Topic, decoded[i].Topic)
		assert.Equal(t, m.Payload, decoded[i].Payload)
		assert.Equal(t, m.QoS, decoded[i].QoS)
		assert.Equal(t, m.Retain, decoded[i].Retain)
	}
}

func TestRetainedBlockEmpty(t *testing.T) {
	encoded := EncodeRetainedBlock(nil)
	decoded, err := DecodeRetainedBlock(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestRetainedBlockExactByteLayout(t *testing.T) {
	msgs := []*message.ApplicationMessage{
		{Topic: "ab", Payload: []byte("xy"), QoS: 1, Retain: true},
	}
	encoded := EncodeRetainedBlock(msgs)

	// count=1
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x01}, encoded[0:4])
	// topic_len=2
	require.Equal(t, []byte{0x00, 0x02}, encoded[4:6])
	// topic="ab"
	require.Equal(t, []byte("ab"), encoded[6:8])
	// flags: qos=1, retain bit set -> 0b101 = 0x05
	require.Equal(t, byte(0x05), encoded[8])
	// pl_len=2
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x02}, encoded[9:13])
	// payload="xy"
	require.Equal(t, []byte("xy"), encoded[13:15])
	require.Len(t, encoded, 15)
}
