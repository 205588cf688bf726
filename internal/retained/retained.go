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

// Package retained implements the RetainedStore described in spec §3:
// topic (exact, no wildcards) to last retained ApplicationMessage.
package retained

import (
	"sync"

	"github.com/yunqi/lighthouse/internal/message"
	"github.com/yunqi/lighthouse/internal/subscription"
)

// Store is the RetainedStore contract; the in-memory implementation
// below satisfies the Non-goal "not a persistent disk store", the
// optional Redis-backed implementation in internal/persistence/redis
// satisfies the same interface for operators who want it survived.
type Store interface {
	// Publish applies msg to the store: an empty payload with
	// Retain=true deletes the topic's entry, otherwise it replaces it.
	Publish(msg *message.ApplicationMessage)
	// Match returns every retained message whose topic matches filter.
	Match(filter string) []*message.ApplicationMessage
	// Get returns the retained message for an exact topic, if any.
	Get(topic string) (*message.ApplicationMessage, bool)
	// All returns every retained message, used for cluster retained-sync.
	All() []*message.ApplicationMessage
	// Install replaces/augments the store's contents without treating
	// the inserts as fresh publishes (used by cluster sync receivers).
	Install(msgs []*message.ApplicationMessage)
}

type memoryStore struct {
	mu    sync.RWMutex
	byTop map[string]*message.ApplicationMessage
}

// NewMemoryStore returns the default in-memory RetainedStore.
func NewMemoryStore() Store {
	return &memoryStore{byTop: make(map[string]*message.ApplicationMessage)}
}

func (s *memoryStore) Publish(msg *message.ApplicationMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.IsDeleteRetained() {
		delete(s.byTop, msg.Topic)
		return
	}
	s.byTop[msg.Topic] = msg
}

func (s *memoryStore) Match(filter string) []*message.ApplicationMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*message.ApplicationMessage
	for topic, msg := range s.byTop {
		if subscription.Matches(filter, topic) {
			out = append(out, msg)
		}
	}
	return out
}

func (s *memoryStore) Get(topic string) (*message.ApplicationMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byTop[topic]
	return m, ok
}

func (s *memoryStore) All() []*message.ApplicationMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*message.ApplicationMessage, 0, len(s.byTop))
	for _, m := range s.byTop {
		out = append(out, m)
	}
	return out
}

func (s *memoryStore) Install(msgs []*message.ApplicationMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		if m.IsDeleteRetained() {
			delete(s.byTop, m.Topic)
			continue
		}
		s.byTop[m.Topic] = m
	}
}
