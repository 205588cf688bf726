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
	"time"
)

// Peer is one established cluster connection. Exactly one goroutine
// ever calls send on a given Peer's conn at a time (sendMu), and the
// Layer guarantees at most one live Peer per NodeID exists at once —
// see Layer.registerPeer for how that single-ownership invariant is kept
// across the simultaneous-dial race.
type Peer struct {
	NodeID      string
	NodeAddress string

	conn   net.Conn
	sendMu sync.Mutex

	lastSeenMu sync.Mutex
	lastSeen   time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

// newPeer wraps an already handshaken conn. Ownership of conn passes
// to the returned Peer: callers must not use conn directly again.
func newPeer(conn net.Conn, nodeID, nodeAddress string) *Peer {
	return &Peer{
		NodeID:      nodeID,
		NodeAddress: nodeAddress,
		conn:        conn,
		lastSeen:    time.Now(),
		closed:      make(chan struct{}),
	}
}

// Send writes one frame to the peer.
func (p *Peer) Send(f Frame) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	return WriteFrame(p.conn, f)
}

// Touch records a fresh liveness signal (any received frame counts,
// not just Heartbeat).
func (p *Peer) Touch() {
	p.lastSeenMu.Lock()
	p.lastSeen = time.Now()
	p.lastSeenMu.Unlock()
}

// LastSeen returns the last time a frame was received from this peer.
func (p *Peer) LastSeen() time.Time {
	p.lastSeenMu.Lock()
	defer p.lastSeenMu.Unlock()
	return p.lastSeen
}

// Close tears the peer connection down exactly once.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		err = p.conn.Close()
	})
	return err
}

// IsClosed reports whether Close has run, without blocking.
func (p *Peer) IsClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}
