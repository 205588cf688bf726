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

// Package hooks exposes the broker's extension points: authentication,
// authorization and the lifecycle events an embedder can observe. The
// event set is a deliberately small slice of the dozens a full hook
// registry could offer; only the events the core actually fires are
// named (spec §9's authorization/event hooks).
package hooks

import "github.com/yunqi/lighthouse/internal/message"

// Event identifies a point in a publish/subscribe lifecycle an
// embedder may want to observe.
type Event byte

const (
	ClientConnected Event = iota
	ClientDisconnected
	ClientSubscribing
	ClientSubscribed
	MessagePublishing
	MessagePublished
	MessageDelivered
	MessageNotDelivered
)

func (e Event) String() string {
	names := [...]string{
		"ClientConnected",
		"ClientDisconnected",
		"ClientSubscribing",
		"ClientSubscribed",
		"MessagePublishing",
		"MessagePublished",
		"MessageDelivered",
		"MessageNotDelivered",
	}
	if int(e) < len(names) {
		return names[e]
	}
	return "Unknown"
}

// ConnectInfo carries the subset of a CONNECT packet a hook needs to
// decide whether to admit a client.
type ConnectInfo struct {
	ClientID        string
	Username        string
	Password        []byte
	RemoteAddr      string
	ProtocolVersion byte
}

// Authenticator decides whether a CONNECT may proceed. It is consulted
// after the session manager has applied config.Mqtt.AllowAnonymous.
type Authenticator interface {
	Authenticate(info *ConnectInfo) bool
}

// Authorizer decides whether an already-connected client may publish
// or subscribe to a given topic filter.
type Authorizer interface {
	CanPublish(clientID, topic string) bool
	CanSubscribe(clientID, topicFilter string) bool
}

// EventListener observes lifecycle events; embedders register zero or
// more without needing to implement Authenticator/Authorizer.
type EventListener interface {
	OnEvent(event Event, clientID string, msg *message.ApplicationMessage)
}

// AllowAllAuthenticator admits every CONNECT; NewRegistry installs it
// as the default Authenticator.
type AllowAllAuthenticator struct{}

func (AllowAllAuthenticator) Authenticate(*ConnectInfo) bool { return true }

// DenyAllAuthenticator rejects every CONNECT. Nothing installs it by
// default; an embedder sets it as Registry.Authenticator explicitly.
type DenyAllAuthenticator struct{}

func (DenyAllAuthenticator) Authenticate(*ConnectInfo) bool { return false }

// AllowAllAuthorizer grants every publish and subscribe request; the
// default when no Authorizer is configured.
type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) CanPublish(string, string) bool   { return true }
func (AllowAllAuthorizer) CanSubscribe(string, string) bool { return true }

// Registry composes an Authenticator, an Authorizer and any number of
// EventListeners. NewRegistry fills both with the allow-all defaults;
// neither field may be left nil, since callers invoke them directly.
type Registry struct {
	Authenticator Authenticator
	Authorizer    Authorizer
	listeners     []EventListener
}

// NewRegistry returns a Registry that allows everything until
// overridden, mirroring the teacher's options-struct defaulting style.
func NewRegistry() *Registry {
	return &Registry{
		Authenticator: AllowAllAuthenticator{},
		Authorizer:    AllowAllAuthorizer{},
	}
}

// AddListener registers an EventListener to receive Fire calls.
func (r *Registry) AddListener(l EventListener) {
	r.listeners = append(r.listeners, l)
}

// Fire notifies every registered listener of event, synchronously on
// the caller's goroutine. The pipeline fires MessagePublishing and the
// session manager fires the client lifecycle events this way;
// MessageDelivered/MessageNotDelivered/MessagePublished go through the
// pipeline's async dispatcher, off the publish hot path.
func (r *Registry) Fire(event Event, clientID string, msg *message.ApplicationMessage) {
	for _, l := range r.listeners {
		l.OnEvent(event, clientID, msg)
	}
}
