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

package subscription

import "sync"

// Entry is one filter -> granted-QoS mapping held by a session.
type Entry struct {
	Filter      string
	GrantedQoS  byte
}

// Set is a session's subscription set. Mutation only ever happens from
// that session's own read-loop goroutine (spec §5); reads from the
// fan-out path take a brief snapshot instead of holding the lock for
// the whole scan, so a fan-out task never blocks on a session it isn't
// delivering to.
type Set struct {
	mu      sync.RWMutex
	filters map[string]byte
}

// NewSet returns an empty subscription set.
func NewSet() *Set {
	return &Set{filters: make(map[string]byte)}
}

// Add inserts or updates filter with qos, returning true if this is a
// brand-new filter for the set (used to trigger cluster subscription
// gossip on first-subscriber transitions).
func (s *Set) Add(filter string, qos byte) (isNew bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.filters[filter]
	s.filters[filter] = qos
	return !existed
}

// Remove deletes filter, returning true if it existed.
func (s *Set) Remove(filter string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.filters[filter]
	delete(s.filters, filter)
	return existed
}

// Len reports the number of held filters.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filters)
}

// Snapshot returns a point-in-time copy of the set's entries, safe for
// the caller to range over without holding any lock.
func (s *Set) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.filters))
	for f, q := range s.filters {
		out = append(out, Entry{Filter: f, GrantedQoS: q})
	}
	return out
}

// MatchFirst scans the set's entries and returns the first filter
// (snapshot order) matching topic, implementing the spec §4.5
// "at most one copy per publish" rule: a session never receives two
// copies of the same publish even if several of its filters match.
func (s *Set) MatchFirst(topic string) (Entry, bool) {
	for _, e := range s.Snapshot() {
		if Matches(e.Filter, topic) {
			return e, true
		}
	}
	return Entry{}, false
}

// Restore replaces the set's contents wholesale, used when a persistent
// session is resumed on reconnect (spec §3 Session lifecycle).
func (s *Set) Restore(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = make(map[string]byte, len(entries))
	for _, e := range entries {
		s.filters[e.Filter] = e.GrantedQoS
	}
}
