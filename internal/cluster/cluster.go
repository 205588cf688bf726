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
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yunqi/lighthouse/config"
	"github.com/yunqi/lighthouse/internal/goroutine"
	"github.com/yunqi/lighthouse/internal/message"
	"github.com/yunqi/lighthouse/internal/retained"
	"github.com/yunqi/lighthouse/internal/subscription"
	"github.com/yunqi/lighthouse/internal/xerror"
	"github.com/yunqi/lighthouse/internal/xlog"
)

// Publisher is the local fan-out entry point a received cluster publish
// is injected into, and the source of locally-originated publishes a
// Layer forwards outward. internal/pipeline.Pipeline satisfies this
// structurally.
type Publisher interface {
	Publish(msg *message.ApplicationMessage, authorize func(topic string) bool) (int, error)
}

type direction int

const (
	dirInbound direction = iota
	dirOutbound
)

// Layer is one node's view of the cluster: its accepted and dialed
// peer connections, the dedup cache that makes flood-forwarding
// terminate, and the retained-store it serves sync requests from
// (spec §4.6).
type Layer struct {
	cfg      config.Cluster
	nodeID   string
	pub      Publisher
	retained retained.Store
	log      *xlog.Log

	listener net.Listener

	mu            sync.RWMutex
	peers         map[string]*Peer            // nodeID -> live peer
	remoteInterest map[string]map[string]struct{} // nodeID -> filters that node has told us it wants

	dedup *MessageIDCache

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a cluster Layer. pub and store must already exist; Layer
// calls neither until Start.
func New(cfg config.Cluster, pub Publisher, store retained.Store) *Layer {
	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = fmt.Sprintf("node-%d", time.Now().UnixNano())
	}
	return &Layer{
		cfg:            cfg,
		nodeID:         nodeID,
		pub:            pub,
		retained:       store,
		log:            xlog.LoggerModule("cluster"),
		peers:          make(map[string]*Peer),
		remoteInterest: make(map[string]map[string]struct{}),
		dedup:          NewMessageIDCache(cfg.MessageIDCacheExpiry()),
		closed:         make(chan struct{}),
	}
}

// NodeID returns this node's cluster identity.
func (l *Layer) NodeID() string { return l.nodeID }

// Start opens the cluster listener, dials every configured seed node,
// and launches the heartbeat and dedup-sweep loops. It returns once the
// listener is bound; connection handling continues in the background.
func (l *Layer) Start() error {
	if !l.cfg.Enabled() {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", l.cfg.BindAddress, l.cfg.ClusterPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("cluster: listen %s: %w", addr, err)
	}
	l.listener = ln
	l.log.Info("cluster layer listening", zap.String("addr", addr), zap.String("node_id", l.nodeID))

	goroutine.Go(l.acceptLoop)
	goroutine.Go(l.heartbeatLoop)
	goroutine.Go(l.sweepLoop)

	for _, seed := range l.cfg.SeedNodes {
		seed := seed
		goroutine.Go(func() { l.dialSeed(seed) })
	}
	return nil
}

// Stop announces NodeLeave to every connected peer and tears the
// listener and all peer connections down, per spec §5's shutdown
// sequence.
func (l *Layer) Stop() {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.broadcast(Frame{Type: NodeLeave, Payload: []byte(l.nodeID)}, nil)
		if l.listener != nil {
			_ = l.listener.Close()
		}
		l.mu.Lock()
		peers := make([]*Peer, 0, len(l.peers))
		for _, p := range l.peers {
			peers = append(peers, p)
		}
		l.peers = make(map[string]*Peer)
		l.mu.Unlock()
		for _, p := range peers {
			_ = p.Close()
		}
	})
}

func (l *Layer) isStopped() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// Peers returns a snapshot of currently connected peers.
func (l *Layer) Peers() []*Peer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Peer, 0, len(l.peers))
	for _, p := range l.peers {
		out = append(out, p)
	}
	return out
}

func (l *Layer) acceptLoop() {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if l.isStopped() {
				return
			}
			l.log.Warn("cluster accept error", zap.Error(err))
			return
		}
		goroutine.Go(func() { l.handleInbound(conn) })
	}
}

func (l *Layer) handshakeSelf() Handshake {
	return Handshake{
		ProtocolVersion: ProtocolVersion,
		NodeID:          l.nodeID,
		ClusterName:     l.cfg.ClusterName,
		ListenPort:      uint16(l.cfg.ClusterPort),
		NodeAddress:     l.cfg.BindAddress,
		Timestamp:       time.Now().Unix(),
	}
}

func (l *Layer) handleInbound(conn net.Conn) {
	frame, err := ReadFrame(conn)
	if err != nil || frame.Type != HandshakeRequest {
		_ = conn.Close()
		return
	}
	remote, err := DecodeHandshake(frame.Payload)
	if err != nil {
		_ = conn.Close()
		return
	}
	if rejectErr := l.validateHandshake(remote); rejectErr != nil {
		l.log.Warn("rejecting inbound cluster handshake", zap.Error(rejectErr), zap.String("remote_node", remote.NodeID))
		_ = conn.Close()
		return
	}

	if err := WriteFrame(conn, Frame{Type: HandshakeResponse, Payload: l.handshakeSelf().Encode()}); err != nil {
		_ = conn.Close()
		return
	}

	candidate := newPeer(conn, remote.NodeID, remote.NodeAddress)
	winner := l.registerPeer(candidate, dirInbound)
	if winner != candidate {
		_ = candidate.Close()
		return
	}
	l.log.Info("cluster peer connected", zap.String("node_id", remote.NodeID), zap.String("via", "inbound"))
	l.peerLoop(candidate)
}

func (l *Layer) dialSeed(addr string) {
	backoffDelay := l.cfg.ReconnectDelay()
	for !l.isStopped() {
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			l.log.Debug("cluster seed dial failed, retrying", zap.String("addr", addr), zap.Error(err))
			time.Sleep(backoffDelay)
			continue
		}
		l.runOutbound(conn, addr)
		if l.isStopped() {
			return
		}
		time.Sleep(backoffDelay)
	}
}

func (l *Layer) runOutbound(conn net.Conn, addr string) {
	if err := WriteFrame(conn, Frame{Type: HandshakeRequest, Payload: l.handshakeSelf().Encode()}); err != nil {
		_ = conn.Close()
		return
	}
	frame, err := ReadFrame(conn)
	if err != nil || frame.Type != HandshakeResponse {
		_ = conn.Close()
		return
	}
	remote, err := DecodeHandshake(frame.Payload)
	if err != nil {
		_ = conn.Close()
		return
	}
	if rejectErr := l.validateHandshake(remote); rejectErr != nil {
		l.log.Warn("rejecting outbound cluster handshake", zap.Error(rejectErr), zap.String("addr", addr))
		_ = conn.Close()
		return
	}

	candidate := newPeer(conn, remote.NodeID, remote.NodeAddress)
	winner := l.registerPeer(candidate, dirOutbound)
	if winner != candidate {
		_ = candidate.Close()
		return
	}
	l.log.Info("cluster peer connected", zap.String("node_id", remote.NodeID), zap.String("via", "outbound"))
	l.requestRetainedSync(candidate)
	l.peerLoop(candidate)
}

func (l *Layer) validateHandshake(remote Handshake) error {
	if remote.NodeID == l.nodeID {
		return xerror.ErrSelfConnect
	}
	if remote.ClusterName != l.cfg.ClusterName {
		return xerror.ErrClusterNameMismatch
	}
	return nil
}

// registerPeer is the single choke point every live Peer passes
// through before it is visible to the rest of the Layer. It resolves
// the case where two nodes dial each other at the same moment and end
// up with two sockets claiming the same NodeID: both sides apply the
// identical deterministic rule (the lower NodeID's outbound connection
// wins) so they converge on the same surviving socket without a
// coordination round-trip, and the loser is closed by the same
// goroutine that decided it lost — a peer's conn is never reachable
// from two goroutines at once (spec §9 "ClusterPeer ownership").
func (l *Layer) registerPeer(candidate *Peer, dir direction) *Peer {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, ok := l.peers[candidate.NodeID]
	if !ok || existing.IsClosed() {
		l.peers[candidate.NodeID] = candidate
		return candidate
	}

	preferOutbound := l.nodeID < candidate.NodeID
	candidateWins := (dir == dirOutbound) == preferOutbound
	if !candidateWins {
		return existing
	}
	_ = existing.Close()
	l.peers[candidate.NodeID] = candidate
	return candidate
}

func (l *Layer) removePeer(p *Peer) {
	l.mu.Lock()
	if l.peers[p.NodeID] == p {
		delete(l.peers, p.NodeID)
	}
	delete(l.remoteInterest, p.NodeID)
	l.mu.Unlock()
}

func (l *Layer) peerLoop(p *Peer) {
	defer func() {
		_ = p.Close()
		l.removePeer(p)
		l.log.Info("cluster peer disconnected", zap.String("node_id", p.NodeID))
	}()
	for {
		frame, err := ReadFrame(p.conn)
		if err != nil {
			return
		}
		p.Touch()
		l.handleFrame(p, frame)
	}
}

func (l *Layer) handleFrame(p *Peer, f Frame) {
	switch f.Type {
	case Heartbeat:
		// Touch already recorded liveness; nothing further to do.
	case MsgPublish:
		l.handlePublishFrame(p, f)
	case MsgSubscribe:
		l.handleSubscribeFrame(p, f, true)
	case MsgUnsubscribe:
		l.handleSubscribeFrame(p, f, false)
	case NodeLeave:
		l.log.Info("peer announced leave", zap.String("node_id", p.NodeID))
		_ = p.Close()
	case RetainedSyncRequest:
		l.handleRetainedSyncRequest(p)
	case RetainedSyncData:
		l.handleRetainedSyncData(f)
	case DiscoverRequest, DiscoverResponse, HandshakeRequest, HandshakeResponse:
		// Discovery gossip and post-handshake stray handshakes are not
		// part of this broker's cluster surface; seed-list configuration
		// covers peer discovery instead.
	}
}

func (l *Layer) handlePublishFrame(from *Peer, f Frame) {
	env, err := DecodePublishEnvelope(f.Payload)
	if err != nil {
		l.log.Warn("malformed cluster publish envelope", zap.Error(err))
		return
	}
	if l.dedup.SeenOrMark(env.Fingerprint()) {
		return
	}

	l.broadcastPublish(f, env, from)

	msg := &message.ApplicationMessage{
		Topic:          env.Topic,
		Payload:        env.Payload,
		QoS:            env.QoS,
		Retain:         env.Retain,
		SourceProtocol: message.SourceCluster,
		SourceClientID: env.SourceNode,
		PublishTime:    time.Now(),
	}
	_, _ = l.pub.Publish(msg, nil)
}

func (l *Layer) handleSubscribeFrame(from *Peer, f Frame, subscribe bool) {
	env, err := DecodeSubscriptionEnvelope(f.Payload)
	if err != nil {
		l.log.Warn("malformed cluster subscription envelope", zap.Error(err))
		return
	}
	l.mu.Lock()
	filters, ok := l.remoteInterest[from.NodeID]
	if !ok {
		filters = make(map[string]struct{})
		l.remoteInterest[from.NodeID] = filters
	}
	if subscribe {
		filters[env.Filter] = struct{}{}
	} else {
		delete(filters, env.Filter)
	}
	l.mu.Unlock()
}

func (l *Layer) handleRetainedSyncRequest(p *Peer) {
	block := EncodeRetainedBlock(l.retained.All())
	_ = p.Send(Frame{Type: RetainedSyncData, Payload: block})
}

func (l *Layer) handleRetainedSyncData(f Frame) {
	msgs, err := DecodeRetainedBlock(f.Payload)
	if err != nil {
		l.log.Warn("malformed retained sync block", zap.Error(err))
		return
	}
	l.retained.Install(msgs)
	l.log.Info("installed retained sync block", zap.Int("count", len(msgs)))
}

func (l *Layer) requestRetainedSync(p *Peer) {
	_ = p.Send(Frame{Type: RetainedSyncRequest})
}

// Forward implements pipeline.Forwarder: it is called once per
// locally-originated publish (client or bridge sourced) and floods it
// to every peer whose announced interest could match, marking its own
// fingerprint seen first so an echo bounced back through the mesh is
// dropped rather than re-delivered locally.
func (l *Layer) Forward(msg *message.ApplicationMessage) {
	if !l.cfg.Enabled() {
		return
	}
	env := PublishEnvelope{
		SourceNode: l.nodeID,
		Topic:      msg.Topic,
		QoS:        msg.QoS,
		Retain:     msg.Retain,
		WallTicks:  time.Now().UnixNano(),
		Payload:    msg.Payload,
	}
	l.dedup.SeenOrMark(env.Fingerprint())
	l.broadcastPublish(Frame{Type: MsgPublish, Payload: env.Encode()}, env, nil)
}

// GossipSubscribe implements session.SubscriptionGossip.
func (l *Layer) GossipSubscribe(filter string) {
	l.gossipSubscription(filter, MsgSubscribe)
}

// GossipUnsubscribe implements session.SubscriptionGossip.
func (l *Layer) GossipUnsubscribe(filter string) {
	l.gossipSubscription(filter, MsgUnsubscribe)
}

func (l *Layer) gossipSubscription(filter string, kind MessageType) {
	if !l.cfg.Enabled() {
		return
	}
	env := SubscriptionEnvelope{SourceNode: l.nodeID, Filter: filter}
	l.broadcast(Frame{Type: kind, Payload: env.Encode()}, nil)
}

// broadcast sends f to every connected peer except except (nil means
// no exclusion), used for control traffic that every peer must see
// regardless of announced interest.
func (l *Layer) broadcast(f Frame, except *Peer) {
	for _, p := range l.Peers() {
		if p == except {
			continue
		}
		if err := p.Send(f); err != nil {
			l.log.Debug("cluster send failed", zap.String("node_id", p.NodeID), zap.Error(err))
		}
	}
}

// broadcastPublish sends a MsgPublish frame to every peer, skipping a
// peer only once it has positively told us (via MsgUnsubscribe leaving
// it with zero filters, or simply never subscribing after announcing
// at least one) that no local subscriber of its own can match the
// topic; a peer we have heard nothing from yet is forwarded to
// conservatively, since withholding could silently drop a delivery in
// a mesh where subscribe gossip hasn't arrived yet.
func (l *Layer) broadcastPublish(f Frame, env PublishEnvelope, except *Peer) {
	for _, p := range l.Peers() {
		if p == except || p.NodeID == env.SourceNode {
			continue
		}
		if !l.hasInterest(p.NodeID, env.Topic) {
			continue
		}
		if err := p.Send(f); err != nil {
			l.log.Debug("cluster publish forward failed", zap.String("node_id", p.NodeID), zap.Error(err))
		}
	}
}

func (l *Layer) hasInterest(nodeID, topic string) bool {
	l.mu.RLock()
	filters, known := l.remoteInterest[nodeID]
	l.mu.RUnlock()
	if !known {
		return true
	}
	for f := range filters {
		if subscription.Matches(f, topic) {
			return true
		}
	}
	return false
}

func (l *Layer) heartbeatLoop() {
	ticker := time.NewTicker(l.cfg.HeartbeatInterval())
	defer ticker.Stop()
	for {
		select {
		case <-l.closed:
			return
		case <-ticker.C:
			l.broadcast(Frame{Type: Heartbeat}, nil)
			l.reapDeadPeers()
		}
	}
}

func (l *Layer) reapDeadPeers() {
	deadline := l.cfg.NodeTimeout()
	now := time.Now()
	for _, p := range l.Peers() {
		if now.Sub(p.LastSeen()) > deadline {
			l.log.Warn("cluster peer timed out", zap.String("node_id", p.NodeID))
			_ = p.Close()
			l.removePeer(p)
		}
	}
}

func (l *Layer) sweepLoop() {
	interval := l.cfg.MessageIDCacheExpiry() / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.closed:
			return
		case now := <-ticker.C:
			l.dedup.Sweep(now)
		}
	}
}
