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

// Package offline implements the bounded per-client offline message
// queue used to buffer publishes for a disconnected persistent
// session (spec §3 "Session", §6 MaxOfflineMessagesPerClient).
package offline

import (
	"sync"

	"github.com/yunqi/lighthouse/internal/message"
)

// Queue is the OfflineQueue contract: a bounded, drop-oldest FIFO per
// client id.
type Queue interface {
	// Push appends msg to clientID's queue, evicting the oldest entry
	// if the queue is already at max.
	Push(clientID string, msg *message.ApplicationMessage)
	// Drain returns and clears clientID's queued messages, in the
	// order they were pushed, for redelivery on reconnect.
	Drain(clientID string) []*message.ApplicationMessage
	// Len reports how many messages are queued for clientID.
	Len(clientID string) int
	// Discard drops clientID's queue outright (session destroyed).
	Discard(clientID string)
}

type memoryQueue struct {
	mu      sync.Mutex
	max     int
	byOwner map[string][]*message.ApplicationMessage
}

// NewMemoryQueue returns the default in-memory Queue, capping every
// client's queue at max messages (max <= 0 means unbounded).
func NewMemoryQueue(max int) Queue {
	return &memoryQueue{max: max, byOwner: make(map[string][]*message.ApplicationMessage)}
}

func (q *memoryQueue) Push(clientID string, msg *message.ApplicationMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	queue := append(q.byOwner[clientID], msg)
	if q.max > 0 && len(queue) > q.max {
		queue = queue[len(queue)-q.max:]
	}
	q.byOwner[clientID] = queue
}

func (q *memoryQueue) Drain(clientID string) []*message.ApplicationMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	queue := q.byOwner[clientID]
	delete(q.byOwner, clientID)
	return queue
}

func (q *memoryQueue) Len(clientID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byOwner[clientID])
}

func (q *memoryQueue) Discard(clientID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.byOwner, clientID)
}
