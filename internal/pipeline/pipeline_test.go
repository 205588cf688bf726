package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yunqi/lighthouse/internal/hooks"
	"github.com/yunqi/lighthouse/internal/message"
	"github.com/yunqi/lighthouse/internal/retained"
	"github.com/yunqi/lighthouse/internal/subscription"
	"github.com/yunqi/lighthouse/internal/xerror"
)

type fakeRecipient struct {
	id   string
	subs *subscription.Set
	mu   sync.Mutex
	got  []*message.ApplicationMessage
}

func newFakeRecipient(id string) *fakeRecipient {
	return &fakeRecipient{id: id, subs: subscription.NewSet()}
}

func (f *fakeRecipient) ClientID() string                      { return f.id }
func (f *fakeRecipient) Subscriptions() *subscription.Set       { return f.subs }
func (f *fakeRecipient) Deliver(msg *message.ApplicationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, msg)
	return nil
}
func (f *fakeRecipient) received() []*message.ApplicationMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.got
}

type fakeRegistry struct {
	recipients []Recipient
}

func (f *fakeRegistry) Recipients() []Recipient { return f.recipients }

func TestPublishFansOutAndDowngradesQoS(t *testing.T) {
	store := retained.NewMemoryStore()
	p := New(store, hooks.NewRegistry(), 0)

	r1 := newFakeRecipient("r1")
	r1.subs.Add("a/#", 0)
	r2 := newFakeRecipient("r2")
	r2.subs.Add("a/b", 2)

	p.SetRegistry(&fakeRegistry{recipients: []Recipient{r1, r2}})

	n, err := p.Publish(&message.ApplicationMessage{Topic: "a/b", Payload: []byte("x"), QoS: 1}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, byte(0), r1.received()[0].QoS)
	assert.Equal(t, byte(1), r2.received()[0].QoS)
}

func TestPublishExcludesSourceClient(t *testing.T) {
	store := retained.NewMemoryStore()
	p := New(store, hooks.NewRegistry(), 0)

	r1 := newFakeRecipient("r1")
	r1.subs.Add("a/#", 2)
	r2 := newFakeRecipient("r2")
	r2.subs.Add("a/#", 2)

	p.SetRegistry(&fakeRegistry{recipients: []Recipient{r1, r2}})

	n, err := p.Publish(&message.ApplicationMessage{Topic: "a/b", Payload: []byte("x"), QoS: 1, SourceClientID: "r1"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, n, "the publishing client must not receive its own echo")
	assert.Empty(t, r1.received())
	assert.Len(t, r2.received(), 1)
}

func TestPublishRejectsOversizedMessage(t *testing.T) {
	p := New(retained.NewMemoryStore(), hooks.NewRegistry(), 4)
	_, err := p.Publish(&message.ApplicationMessage{Topic: "a", Payload: []byte("too big")}, nil)
	assert.ErrorIs(t, err, xerror.ErrMessageTooLarge)
}

func TestPublishDeniedByAuthorize(t *testing.T) {
	p := New(retained.NewMemoryStore(), hooks.NewRegistry(), 0)
	_, err := p.Publish(&message.ApplicationMessage{Topic: "a"}, func(string) bool { return false })
	assert.Error(t, err)
}

func TestDeliverRetainedReplaysMatches(t *testing.T) {
	store := retained.NewMemoryStore()
	store.Publish(&message.ApplicationMessage{Topic: "a/b", Payload: []byte("1"), Retain: true, QoS: 2})
	p := New(store, hooks.NewRegistry(), 0)

	r := newFakeRecipient("r1")
	p.DeliverRetained(r, "a/+", 0)

	time.Sleep(10 * time.Millisecond)
	got := r.received()
	assert.Len(t, got, 1)
	assert.Equal(t, byte(0), got[0].QoS)
	assert.True(t, got[0].Retain)
}
