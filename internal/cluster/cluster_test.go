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
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yunqi/lighthouse/config"
	"github.com/yunqi/lighthouse/internal/message"
)

type fakePublisher struct {
	mu    sync.Mutex
	seen  []*message.ApplicationMessage
}

func (f *fakePublisher) Publish(msg *message.ApplicationMessage, _ func(string) bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, msg)
	return 1, nil
}

func (f *fakePublisher) messages() []*message.ApplicationMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*message.ApplicationMessage, len(f.seen))
	copy(out, f.seen)
	return out
}

func newTestLayer(nodeID string) (*Layer, *fakePublisher) {
	cfg := config.Cluster{
		Enable:      true,
		NodeID:      nodeID,
		ClusterName: "test-cluster",
		ClusterPort: 11883,
	}
	pub := &fakePublisher{}
	return New(cfg, pub, nil), pub
}

func newPeerPair(t *testing.T) (*Peer, *Peer) {
	a, b := net.Pipe()
	return newPeer(a, "peer-a", ""), newPeer(b, "peer-b", "")
}

func TestRegisterPeerFirstCandidateWins(t *testing.T) {
	l, _ := newTestLayer("node-a")
	p, _ := newPeerPair(t)
	p.NodeID = "node-b"

	winner := l.registerPeer(p, dirOutbound)
	assert.Same(t, p, winner)
	assert.Len(t, l.Peers(), 1)
}

func TestRegisterPeerDeterministicTieBreak(t *testing.T) {
	// node-a < node-b lexicographically, so the rule prefers the
	// connection node-a dialed outbound over the one it accepted
	// inbound from node-b.
	l, _ := newTestLayer("node-a")

	inbound, _ := newPeerPair(t)
	inbound.NodeID = "node-b"
	winner1 := l.registerPeer(inbound, dirInbound)
	require.Same(t, inbound, winner1)

	outbound, _ := newPeerPair(t)
	outbound.NodeID = "node-b"
	winner2 := l.registerPeer(outbound, dirOutbound)

	assert.Same(t, outbound, winner2, "outbound connection should win when local node id is lower")
	assert.True(t, inbound.IsClosed(), "losing candidate must be closed by the same call that rejected it")
}

func TestRegisterPeerTieBreakOtherDirection(t *testing.T) {
	// node-z > node-b, so node-z's outbound dial loses to an inbound
	// connection from node-b.
	l, _ := newTestLayer("node-z")

	outbound, _ := newPeerPair(t)
	outbound.NodeID = "node-b"
	winner1 := l.registerPeer(outbound, dirOutbound)
	require.Same(t, outbound, winner1)

	inbound, _ := newPeerPair(t)
	inbound.NodeID = "node-b"
	winner2 := l.registerPeer(inbound, dirInbound)

	assert.Same(t, inbound, winner2)
	assert.True(t, outbound.IsClosed())
}

func TestForwardMarksOwnFingerprintSeen(t *testing.T) {
	l, _ := newTestLayer("node-a")
	msg := &message.ApplicationMessage{Topic: "a/b", Payload: []byte("hi"), SourceProtocol: message.SourceClient}

	l.Forward(msg)
	assert.Equal(t, 1, l.dedup.Len())
}

func TestHasInterestDefaultsToTrueWhenUnknown(t *testing.T) {
	l, _ := newTestLayer("node-a")
	assert.True(t, l.hasInterest("node-b", "a/b"))
}

func TestHasInterestRespectsAnnouncedFilters(t *testing.T) {
	l, _ := newTestLayer("node-a")
	l.remoteInterest["node-b"] = map[string]struct{}{"a/+": {}}

	assert.True(t, l.hasInterest("node-b", "a/b"))
	assert.False(t, l.hasInterest("node-b", "x/y"))
}

func TestHandlePublishFrameInjectsLocallyOnce(t *testing.T) {
	l, pub := newTestLayer("node-a")
	env := PublishEnvelope{SourceNode: "node-b", Topic: "a/b", Payload: []byte("hi"), WallTicks: 1}
	frame := Frame{Type: MsgPublish, Payload: env.Encode()}

	l.handlePublishFrame(nil, frame)
	l.handlePublishFrame(nil, frame)

	assert.Len(t, pub.messages(), 1, "duplicate delivery of the same fingerprint must be suppressed")
}

func TestValidateHandshakeRejectsSelfConnect(t *testing.T) {
	l, _ := newTestLayer("node-a")
	err := l.validateHandshake(Handshake{NodeID: "node-a", ClusterName: "test-cluster"})
	assert.Error(t, err)
}

func TestValidateHandshakeRejectsClusterMismatch(t *testing.T) {
	l, _ := newTestLayer("node-a")
	err := l.validateHandshake(Handshake{NodeID: "node-b", ClusterName: "other-cluster"})
	assert.Error(t, err)
}

func TestValidateHandshakeAccepts(t *testing.T) {
	l, _ := newTestLayer("node-a")
	err := l.validateHandshake(Handshake{NodeID: "node-b", ClusterName: "test-cluster"})
	assert.NoError(t, err)
}
