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

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yunqi/lighthouse/config"
	"github.com/yunqi/lighthouse/internal/code"
	"github.com/yunqi/lighthouse/internal/goroutine"
	"github.com/yunqi/lighthouse/internal/hooks"
	"github.com/yunqi/lighthouse/internal/message"
	"github.com/yunqi/lighthouse/internal/offline"
	"github.com/yunqi/lighthouse/internal/packet"
	persistsession "github.com/yunqi/lighthouse/internal/persistence/session"
	persistsub "github.com/yunqi/lighthouse/internal/persistence/subscription"
	"github.com/yunqi/lighthouse/internal/pipeline"
	"github.com/yunqi/lighthouse/internal/subscription"
	"github.com/yunqi/lighthouse/internal/transport"
	"github.com/yunqi/lighthouse/internal/xerror"
	"github.com/yunqi/lighthouse/internal/xlog"
)

// Deps bundles the collaborators a Manager needs, grouped the way the
// teacher's functional-options Server does for its own dependencies.
type Deps struct {
	Config            *config.Mqtt
	Pipeline          *pipeline.Pipeline
	Hooks             *hooks.Registry
	SessionStore      persistsession.Store
	SubscriptionStore persistsub.Store
	OfflineQueue      offline.Queue
	Gossip            SubscriptionGossip
}

// Manager owns every live Session and is the pipeline.Registry the
// publish pipeline fans out through.
type Manager struct {
	deps Deps
	mu   sync.RWMutex
	sess map[string]*Session
	log  *xlog.Log

	subRefsMu sync.Mutex
	subRefs   map[string]int

	extraMu sync.RWMutex
	extra   []pipeline.Recipient
}

// AddExternalRecipient registers a non-session fan-out target — a
// bridge link, at present — so ordinary publish fan-out reaches it the
// same way it reaches a connected client. internal/bridge.Bridge
// satisfies pipeline.Recipient structurally.
func (m *Manager) AddExternalRecipient(r pipeline.Recipient) {
	m.extraMu.Lock()
	defer m.extraMu.Unlock()
	m.extra = append(m.extra, r)
}

// NewManager builds a session Manager wired to its persistence and
// pipeline collaborators, then registers itself as the pipeline's
// recipient Registry.
func NewManager(deps Deps) *Manager {
	m := &Manager{
		deps:    deps,
		sess:    make(map[string]*Session),
		log:     xlog.LoggerModule("session"),
		subRefs: make(map[string]int),
	}
	deps.Pipeline.SetRegistry(m)
	return m
}

// Recipients implements pipeline.Registry.
func (m *Manager) Recipients() []pipeline.Recipient {
	m.mu.RLock()
	out := make([]pipeline.Recipient, 0, len(m.sess))
	for _, s := range m.sess {
		out = append(out, s)
	}
	m.mu.RUnlock()

	m.extraMu.RLock()
	out = append(out, m.extra...)
	m.extraMu.RUnlock()
	return out
}

// CloseAll forcibly disconnects every live session without publishing
// their will messages, for use during broker shutdown.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sess))
	for _, s := range m.sess {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.close(false)
	}
}

// Get returns the live session for clientID, if connected.
func (m *Manager) Get(clientID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sess[clientID]
	return s, ok
}

// Count reports how many sessions are currently connected.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sess)
}

// HandleConnection runs the CONNECT handshake (spec §4.3) on a freshly
// accepted transport and, on success, spawns the session's read loop.
// It returns once the handshake has completed or failed; the read loop
// itself keeps running in its own goroutine until the client
// disconnects.
func (m *Manager) HandleConnection(conn transport.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(m.deps.Config.Timeout()))
	fh, err := packet.ReadFixedHeader(conn)
	if err != nil {
		_ = conn.Close()
		return
	}
	if fh.PacketType != packet.CONNECT {
		// [MQTT-3.1.0-1] CONNECT must be the first packet.
		_ = conn.Close()
		return
	}
	if m.deps.Config.MaxMessageSize > 0 && fh.RemainLength > m.deps.Config.MaxMessageSize {
		// spec §4.3 step 2: reject before the body is read, since
		// RemainLength is attacker-controlled and packet.NewConnect
		// would otherwise allocate a buffer sized by it.
		_ = conn.Close()
		return
	}

	// Version is not known yet; NewConnect self-determines it from the
	// protocol-level byte inside the body.
	connect, err := packet.NewConnect(fh, packet.V311, conn)
	if err != nil {
		m.rejectConnect(conn, err)
		return
	}

	clientID := string(connect.ClientId)
	if clientID == "" {
		if !m.deps.Config.AllowZeroLenClientId || !connect.CleanSession {
			_ = (&packet.Connack{Version: connect.Version, Code: code.V3IdentifierRejected}).Encode(conn)
			_ = conn.Close()
			return
		}
		clientID = "anon-" + uuid.NewString()
	}

	info := &hooks.ConnectInfo{
		ClientID:        clientID,
		Username:        string(connect.Username),
		Password:        connect.Password,
		RemoteAddr:      conn.RemoteAddr().String(),
		ProtocolVersion: byte(connect.Version),
	}
	if !connect.UsernameFlag && !m.deps.Config.AllowAnonymous {
		_ = (&packet.Connack{Version: connect.Version, Code: refuseCode(connect.Version, code.NotAuthorized, code.V3NotAuthorized)}).Encode(conn)
		_ = conn.Close()
		return
	}
	if m.deps.Hooks != nil && !m.deps.Hooks.Authenticator.Authenticate(info) {
		_ = (&packet.Connack{Version: connect.Version, Code: refuseCode(connect.Version, code.BadUsernameOrPassword, code.V3BadUsernameOrPassword)}).Encode(conn)
		_ = conn.Close()
		return
	}

	// Evict any existing live session under the same client-id
	// [MQTT-3.1.4-2].
	if old, ok := m.Get(clientID); ok {
		old.close(false)
	}

	keepAlive := connect.KeepAlive
	if m.deps.Config.MaxKeepAlive > 0 && keepAlive > m.deps.Config.MaxKeepAlive {
		keepAlive = m.deps.Config.MaxKeepAlive
	}

	s := &Session{
		clientID:     clientID,
		version:      connect.Version,
		conn:         conn,
		subs:         subscription.NewSet(),
		cleanSession: connect.CleanSession,
		keepAlive:    time.Duration(float64(keepAlive)*m.deps.Config.Tolerance()) * time.Second,
		mgr:          m,
		log:          xlog.LoggerModule("session"),
		qos2Pending:  make(map[uint16]struct{}),
		closed:       make(chan struct{}),
		connectedAt:  time.Now(),
	}

	if connect.WillFlag {
		s.will = &message.ApplicationMessage{
			Topic:          string(connect.WillTopic),
			Payload:        connect.WillMessage,
			QoS:            connect.WillQoS,
			Retain:         connect.WillRetain,
			SourceProtocol: message.SourceClient,
			SourceClientID: clientID,
		}
	}

	sessionPresent := false
	if !connect.CleanSession && m.deps.Config.EnablePersistentSessions && m.deps.SubscriptionStore != nil {
		if entries, err := m.deps.SubscriptionStore.Get(clientID); err == nil && len(entries) > 0 {
			restored := make([]subscription.Entry, 0, len(entries))
			for _, e := range entries {
				restored = append(restored, subscription.Entry{Filter: e.Filter, GrantedQoS: e.GrantedQoS})
			}
			s.subs.Restore(restored)
			sessionPresent = true
			for _, e := range restored {
				m.trackSubscribe(e.Filter)
			}
		}
	}

	if err := s.sendConnack(code.Success, sessionPresent); err != nil {
		_ = conn.Close()
		return
	}

	m.mu.Lock()
	m.sess[clientID] = s
	m.mu.Unlock()

	if m.deps.Hooks != nil {
		m.deps.Hooks.Fire(hooks.ClientConnected, clientID, nil)
	}

	if m.deps.Config.AutoDeliverOfflineMessages && m.deps.OfflineQueue != nil {
		for _, pending := range m.deps.OfflineQueue.Drain(clientID) {
			_ = s.Deliver(pending)
		}
	}

	goroutine.Go(func() { m.readLoop(s) })
}

func refuseCode(v packet.Version, v5 code.Code, v3 code.Code) code.Code {
	if packet.IsVersion5(v) {
		return v5
	}
	return v3
}

func (m *Manager) rejectConnect(conn transport.Conn, err error) {
	cd := code.MalformedPacket
	switch err {
	case xerror.ErrV3UnacceptableProtocolVersion:
		cd = code.V3UnacceptableProtocolVersion
	case xerror.ErrV3IdentifierRejected:
		cd = code.V3IdentifierRejected
	}
	_ = (&packet.Connack{Version: packet.V311, Code: cd}).Encode(conn)
	_ = conn.Close()
}

// readLoop decodes and dispatches every packet following CONNECT until
// the connection is closed or a protocol error occurs (spec §4.3).
func (m *Manager) readLoop(s *Session) {
	defer s.close(true)
	handler := packet.NewProtocolHandler(s.version)
	for {
		if s.keepAlive > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.keepAlive))
		}
		fh, err := packet.ReadFixedHeader(s.conn)
		if err != nil {
			return
		}
		if m.deps.Config.MaxMessageSize > 0 && fh.RemainLength > m.deps.Config.MaxMessageSize {
			// Reject before the body read allocates a buffer sized by
			// the attacker-controlled remaining-length field.
			s.log.Debug("remaining length exceeds max message size", zap.String("client", s.clientID), zap.Uint32("remain_length", fh.RemainLength))
			return
		}
		p, err := handler.Parse(fh, s.conn)
		if err != nil {
			s.log.Debug("protocol error", zap.String("client", s.clientID), zap.Error(err))
			return
		}
		if m.dispatch(s, p) {
			return
		}
	}
}

// dispatch handles one decoded packet, returning true if the
// connection should be torn down.
func (m *Manager) dispatch(s *Session, p packet.Packet) bool {
	switch pk := p.(type) {
	case *packet.Connect:
		// [MQTT-3.1.0-2] a second CONNECT is a protocol violation.
		return true
	case *packet.Publish:
		m.handlePublish(s, pk)
	case *packet.Ack:
		switch pk.Type {
		case packet.PUBREC:
			// Inbound PUBREC for a message this broker sent outbound;
			// no retry bookkeeping is kept (see DESIGN.md).
			_ = s.writePacket(packet.NewAck(packet.PUBREL, s.version, pk.PacketId, code.Success))
		case packet.PUBREL:
			// Completes the QoS-2 receiver handshake this broker began
			// with PUBREC in handlePublish: the dedup entry for this
			// packet-id is no longer needed once the sender has it back.
			s.qos2Mu.Lock()
			delete(s.qos2Pending, pk.PacketId)
			s.qos2Mu.Unlock()
			_ = s.writePacket(packet.NewAck(packet.PUBCOMP, s.version, pk.PacketId, code.Success))
		}
	case *packet.Subscribe:
		m.handleSubscribe(s, pk)
	case *packet.Unsubscribe:
		m.handleUnsubscribe(s, pk)
	case *packet.Pingreq:
		_ = s.writePacket(&packet.Pingresp{})
	case *packet.Disconnect:
		if pk.ClearsWill() {
			s.will = nil
		}
		return true
	case *packet.Auth:
		// AUTH re-challenge flows are not implemented; acknowledge and
		// continue (spec Non-goal: "enhanced auth continuation").
	}
	return false
}

func (m *Manager) handlePublish(s *Session, pk *packet.Publish) {
	if subscription.ContainsWildcard(string(pk.Topic)) {
		return
	}
	msg := &message.ApplicationMessage{
		Topic:          string(pk.Topic),
		Payload:        pk.Payload,
		QoS:            pk.QoS,
		Retain:         pk.Retain,
		SourceProtocol: message.SourceClient,
		SourceClientID: s.clientID,
		PublishTime:    time.Now(),
	}

	authorize := func(topic string) bool {
		if m.deps.Hooks == nil {
			return true
		}
		return m.deps.Hooks.Authorizer.CanPublish(s.clientID, topic)
	}

	switch pk.QoS {
	case 0:
		_, _ = m.deps.Pipeline.Publish(msg, authorize)
	case 1:
		if _, err := m.deps.Pipeline.Publish(msg, authorize); err == nil {
			_ = s.writePacket(packet.NewAck(packet.PUBACK, s.version, pk.PacketId, code.Success))
		} else {
			_ = s.writePacket(packet.NewAck(packet.PUBACK, s.version, pk.PacketId, code.NotAuthorized))
		}
	case 2:
		s.qos2Mu.Lock()
		_, dup := s.qos2Pending[pk.PacketId]
		s.qos2Pending[pk.PacketId] = struct{}{}
		s.qos2Mu.Unlock()
		if !dup {
			_, _ = m.deps.Pipeline.Publish(msg, authorize)
		}
		_ = s.writePacket(packet.NewAck(packet.PUBREC, s.version, pk.PacketId, code.Success))
	}
}

func (m *Manager) handleSubscribe(s *Session, pk *packet.Subscribe) {
	codes := make([]code.Code, 0, len(pk.Subscriptions))
	for _, sub := range pk.Subscriptions {
		filter := string(sub.TopicFilter)
		if m.deps.Hooks != nil {
			m.deps.Hooks.Fire(hooks.ClientSubscribing, s.clientID, nil)
		}
		if m.deps.Hooks != nil && !m.deps.Hooks.Authorizer.CanSubscribe(s.clientID, filter) {
			codes = append(codes, refuseCode(s.version, code.NotAuthorized, code.V3SubscribeFailure))
			continue
		}
		qos := sub.QoS
		if uint8(qos) > m.deps.Config.MaximumQoS && m.deps.Config.MaximumQoS > 0 {
			qos = m.deps.Config.MaximumQoS
		}
		if isNew := s.subs.Add(filter, qos); isNew {
			m.trackSubscribe(filter)
		}
		codes = append(codes, code.Code(qos))
		m.deps.Pipeline.DeliverRetained(s, filter, qos)
		if m.deps.Hooks != nil {
			m.deps.Hooks.Fire(hooks.ClientSubscribed, s.clientID, nil)
		}
	}
	_ = s.writePacket(&packet.Suback{Version: s.version, PacketId: pk.PacketId, Codes: codes})
	m.persistSubscriptions(s)
}

func (m *Manager) handleUnsubscribe(s *Session, pk *packet.Unsubscribe) {
	codes := make([]code.Code, 0, len(pk.TopicFilters))
	for _, f := range pk.TopicFilters {
		filter := string(f)
		if s.subs.Remove(filter) {
			m.trackUnsubscribe(filter)
			codes = append(codes, code.Success)
		} else {
			codes = append(codes, code.NoSubscriptionExisted)
		}
	}
	_ = s.writePacket(&packet.Unsuback{Version: s.version, PacketId: pk.PacketId, Codes: codes})
	m.persistSubscriptions(s)
}

func (m *Manager) persistSubscriptions(s *Session) {
	if s.cleanSession || !m.deps.Config.EnablePersistentSessions || m.deps.SubscriptionStore == nil {
		return
	}
	entries := s.subs.Snapshot()
	persisted := make([]persistsub.Entry, 0, len(entries))
	for _, e := range entries {
		persisted = append(persisted, persistsub.Entry{Filter: e.Filter, GrantedQoS: e.GrantedQoS})
	}
	_ = m.deps.SubscriptionStore.Put(s.clientID, persisted)
}

// publishWill injects s's stored will message into the publish
// pipeline as though it had arrived over the wire.
func (m *Manager) publishWill(s *Session) {
	w := s.will.Clone()
	w.PublishTime = time.Now()
	_, _ = m.deps.Pipeline.Publish(w, nil)
}

// onSessionClosed removes s from the live set and, for a persistent
// session, persists its subscriptions (a clean session's stored
// subscriptions are deleted), per spec §3's clean-vs-persistent session
// lifecycle. Nothing is pushed to the offline queue here.
func (m *Manager) onSessionClosed(s *Session) {
	m.mu.Lock()
	if m.sess[s.clientID] == s {
		delete(m.sess, s.clientID)
	}
	m.mu.Unlock()

	for _, e := range s.subs.Snapshot() {
		m.trackUnsubscribe(e.Filter)
	}

	if m.deps.Hooks != nil {
		m.deps.Hooks.Fire(hooks.ClientDisconnected, s.clientID, nil)
	}

	if s.cleanSession || !m.deps.Config.EnablePersistentSessions {
		if m.deps.SubscriptionStore != nil {
			_ = m.deps.SubscriptionStore.Delete(s.clientID)
		}
		return
	}
	m.persistSubscriptions(s)
}
