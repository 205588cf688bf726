package retained

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yunqi/lighthouse/internal/message"
)

func TestPublishAndGet(t *testing.T) {
	s := NewMemoryStore()
	s.Publish(&message.ApplicationMessage{Topic: "a/b", Payload: []byte("1"), Retain: true})
	m, ok := s.Get("a/b")
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), m.Payload)
}

func TestPublishEmptyPayloadDeletes(t *testing.T) {
	s := NewMemoryStore()
	s.Publish(&message.ApplicationMessage{Topic: "a/b", Payload: []byte("1"), Retain: true})
	s.Publish(&message.ApplicationMessage{Topic: "a/b", Payload: nil, Retain: true})
	_, ok := s.Get("a/b")
	assert.False(t, ok)
}

func TestMatchWildcard(t *testing.T) {
	s := NewMemoryStore()
	s.Publish(&message.ApplicationMessage{Topic: "home/kitchen/temp", Payload: []byte("21"), Retain: true})
	s.Publish(&message.ApplicationMessage{Topic: "home/lounge/temp", Payload: []byte("19"), Retain: true})
	matches := s.Match("home/+/temp")
	assert.Len(t, matches, 2)
}

func TestInstallEmptyRetainedPayloadDeletes(t *testing.T) {
	s := NewMemoryStore()
	s.Install([]*message.ApplicationMessage{
		{Topic: "x", Payload: []byte("v"), Retain: true},
	})
	_, ok := s.Get("x")
	assert.True(t, ok)

	s.Install([]*message.ApplicationMessage{
		{Topic: "x", Payload: nil, Retain: true},
	})
	_, ok = s.Get("x")
	assert.False(t, ok)
}
