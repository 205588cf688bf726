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

// Package session implements the per-connection state machine (spec
// §4.3): the CONNECT handshake, the read loop that decodes and acts on
// every subsequent packet, keep-alive enforcement and will delivery.
package session

import (
	"sync"
	"time"

	"github.com/yunqi/lighthouse/internal/code"
	"github.com/yunqi/lighthouse/internal/message"
	"github.com/yunqi/lighthouse/internal/packet"
	"github.com/yunqi/lighthouse/internal/subscription"
	"github.com/yunqi/lighthouse/internal/transport"
	"github.com/yunqi/lighthouse/internal/xlog"
)

// Session is one connected client's live state. Its subscription set
// is mutated only from its own readLoop goroutine, matching spec §5's
// single-writer rule; Deliver is safe to call concurrently from any
// fan-out goroutine because it only ever takes pidMu and sendMu.
type Session struct {
	clientID string
	version  packet.Version
	conn     transport.Conn

	sendMu sync.Mutex

	subs *subscription.Set

	cleanSession bool
	keepAlive    time.Duration

	will *message.ApplicationMessage

	mgr *Manager
	log *xlog.Log

	pidMu  sync.Mutex
	nextID uint16

	qos2Mu      sync.Mutex
	qos2Pending map[uint16]struct{}

	closeOnce sync.Once
	closed    chan struct{}

	connectedAt time.Time
}

// ClientID returns the client identifier this session was established
// under.
func (s *Session) ClientID() string { return s.clientID }

// Subscriptions returns the session's live subscription set.
func (s *Session) Subscriptions() *subscription.Set { return s.subs }

// nextPacketID allocates the next outbound packet id, skipping zero
// and wrapping at 65535 (spec §4.3 "packet-id allocator").
func (s *Session) nextPacketID() uint16 {
	s.pidMu.Lock()
	defer s.pidMu.Unlock()
	s.nextID++
	if s.nextID == 0 {
		s.nextID = 1
	}
	return s.nextID
}

// Deliver sends msg to this session as a PUBLISH, allocating a fresh
// packet id when QoS > 0. It is the pipeline.Recipient implementation.
func (s *Session) Deliver(msg *message.ApplicationMessage) error {
	p := &packet.Publish{
		Version: s.version,
		QoS:     msg.QoS,
		Retain:  msg.Retain,
		Topic:   []byte(msg.Topic),
		Payload: msg.Payload,
	}
	if msg.QoS > 0 {
		p.PacketId = s.nextPacketID()
	}
	return s.writePacket(p)
}

func (s *Session) writePacket(p packet.Packet) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return p.Encode(s.conn)
}

// sendConnack writes a CONNACK with the given reason code and session-
// present flag.
func (s *Session) sendConnack(cd code.Code, sessionPresent bool) error {
	return s.writePacket(&packet.Connack{
		Version:        s.version,
		SessionPresent: sessionPresent,
		Code:           cd,
	})
}

// isClosed reports whether the session's connection has been torn
// down, without blocking.
func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// close tears the session down exactly once; deliverWill controls
// whether the stored will message (if any) is published, matching
// spec §4.3's distinction between a graceful DISCONNECT(reason=0) and
// every other teardown path.
func (s *Session) close(deliverWill bool) {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
		if deliverWill && s.will != nil {
			s.mgr.publishWill(s)
		}
		s.mgr.onSessionClosed(s)
	})
}
