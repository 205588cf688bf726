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

// Package pipeline implements the publish path described in spec §4.5:
// authorize, size-check, build an ApplicationMessage, fire the
// MessagePublishing hook, update the retained store, then fan out to
// every matching local recipient with at most one copy per recipient.
// Delivery accounting (MessageDelivered/MessageNotDelivered/
// MessagePublished) runs off a bounded drop-oldest dispatcher so a slow
// hook listener can never stall the publish hot path.
package pipeline

import (
	"go.uber.org/zap"

	"github.com/yunqi/lighthouse/internal/goroutine"
	"github.com/yunqi/lighthouse/internal/hooks"
	"github.com/yunqi/lighthouse/internal/message"
	"github.com/yunqi/lighthouse/internal/retained"
	"github.com/yunqi/lighthouse/internal/subscription"
	"github.com/yunqi/lighthouse/internal/xerror"
	"github.com/yunqi/lighthouse/internal/xlog"
)

// Recipient is anything the pipeline can fan a matching publish out
// to: a live client session, a cluster peer link, or a bridge client.
// internal/session.Session satisfies this structurally.
type Recipient interface {
	ClientID() string
	Subscriptions() *subscription.Set
	Deliver(msg *message.ApplicationMessage) error
}

// Registry enumerates the recipients currently eligible for fan-out.
// internal/session.Manager satisfies this structurally.
type Registry interface {
	Recipients() []Recipient
}

// Forwarder hands a locally-originated publish off to the cluster
// gossip layer for propagation to sibling nodes. internal/cluster.Layer
// satisfies this structurally; a nil Forwarder means clustering is
// disabled.
type Forwarder interface {
	Forward(msg *message.ApplicationMessage)
}

// DefaultEventQueueCapacity is the size of the bounded async event
// channel; once full, the oldest queued event is dropped to make room,
// per spec §9's "bounded drop-oldest event dispatcher".
const DefaultEventQueueCapacity = 10000

type event struct {
	kind      hooks.Event
	clientID  string
	msg       *message.ApplicationMessage
}

// Pipeline is the MessagePublishing pipeline.
type Pipeline struct {
	Retained    retained.Store
	Hooks       *hooks.Registry
	MaxMsgSize  uint32
	WildcardOK  bool

	registry  Registry
	forwarder Forwarder
	events    chan event
	log       *xlog.Log
}

// New builds a Pipeline. registry may be nil and set later via
// SetRegistry once the session manager exists, to break the
// construction-order cycle between the two.
func New(store retained.Store, hookRegistry *hooks.Registry, maxMsgSize uint32) *Pipeline {
	p := &Pipeline{
		Retained:   store,
		Hooks:      hookRegistry,
		MaxMsgSize: maxMsgSize,
		WildcardOK: true,
		events:     make(chan event, DefaultEventQueueCapacity),
		log:        xlog.LoggerModule("pipeline"),
	}
	goroutine.Go(p.runDispatcher)
	return p
}

// SetRegistry wires the recipient registry once the session manager
// that owns it has been constructed.
func (p *Pipeline) SetRegistry(r Registry) {
	p.registry = r
}

// SetForwarder wires the cluster gossip layer once it has been
// constructed. Call at most once, before the broker starts accepting
// connections.
func (p *Pipeline) SetForwarder(f Forwarder) {
	p.forwarder = f
}

// Publish authorizes and fans msg out to every local recipient whose
// subscription set matches, returning the number of recipients it was
// delivered to. authorize may be nil to skip the publish-side ACL
// check (already performed by the caller).
func (p *Pipeline) Publish(msg *message.ApplicationMessage, authorize func(topic string) bool) (int, error) {
	if authorize != nil && !authorize(msg.Topic) {
		return 0, xerror.ErrUnauthorizedAction
	}
	if p.MaxMsgSize > 0 && uint32(len(msg.Payload)) > p.MaxMsgSize {
		return 0, xerror.ErrMessageTooLarge
	}

	if p.Hooks != nil {
		p.Hooks.Fire(hooks.MessagePublishing, msg.SourceClientID, msg)
	}

	if p.Retained != nil && msg.Retain {
		p.Retained.Publish(msg)
	}

	if p.forwarder != nil && msg.SourceProtocol != message.SourceCluster {
		p.forwarder.Forward(msg)
	}

	delivered := 0
	if p.registry != nil {
		for _, recipient := range p.registry.Recipients() {
			if recipient.ClientID() == msg.SourceClientID {
				continue
			}
			entry, ok := recipient.Subscriptions().MatchFirst(msg.Topic)
			if !ok {
				continue
			}
			out := msg.Clone()
			if out.QoS > entry.GrantedQoS {
				out.QoS = entry.GrantedQoS
			}
			if err := recipient.Deliver(out); err != nil {
				p.enqueueEvent(hooks.MessageNotDelivered, recipient.ClientID(), out)
				continue
			}
			delivered++
			p.enqueueEvent(hooks.MessageDelivered, recipient.ClientID(), out)
		}
	}

	p.enqueueEvent(hooks.MessagePublished, msg.SourceClientID, msg)
	return delivered, nil
}

// DeliverRetained replays every retained message matching filter to
// recipient, as required on a fresh SUBSCRIBE (spec §4.4).
func (p *Pipeline) DeliverRetained(recipient Recipient, filter string, grantedQoS byte) {
	if p.Retained == nil {
		return
	}
	for _, m := range p.Retained.Match(filter) {
		out := m.Clone()
		if out.QoS > grantedQoS {
			out.QoS = grantedQoS
		}
		out.Retain = true
		_ = recipient.Deliver(out)
	}
}

func (p *Pipeline) enqueueEvent(kind hooks.Event, clientID string, msg *message.ApplicationMessage) {
	if p.Hooks == nil {
		return
	}
	e := event{kind: kind, clientID: clientID, msg: msg}
	select {
	case p.events <- e:
	default:
		// Queue full: drop the oldest to make room rather than block
		// the publish path (spec §9 bounded drop-oldest dispatcher).
		select {
		case <-p.events:
		default:
		}
		select {
		case p.events <- e:
		default:
		}
	}
}

func (p *Pipeline) runDispatcher() {
	for e := range p.events {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("hook listener panicked", zap.Any("recover", r))
				}
			}()
			p.Hooks.Fire(e.kind, e.clientID, e.msg)
		}()
	}
}
