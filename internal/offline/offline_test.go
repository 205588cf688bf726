package offline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yunqi/lighthouse/internal/message"
)

func TestPushAndDrainOrder(t *testing.T) {
	q := NewMemoryQueue(10)
	q.Push("c1", &message.ApplicationMessage{Topic: "t", Payload: []byte("1")})
	q.Push("c1", &message.ApplicationMessage{Topic: "t", Payload: []byte("2")})
	drained := q.Drain("c1")
	assert.Len(t, drained, 2)
	assert.Equal(t, []byte("1"), drained[0].Payload)
	assert.Equal(t, []byte("2"), drained[1].Payload)
	assert.Equal(t, 0, q.Len("c1"))
}

func TestPushDropsOldestWhenFull(t *testing.T) {
	q := NewMemoryQueue(2)
	q.Push("c1", &message.ApplicationMessage{Payload: []byte("1")})
	q.Push("c1", &message.ApplicationMessage{Payload: []byte("2")})
	q.Push("c1", &message.ApplicationMessage{Payload: []byte("3")})
	drained := q.Drain("c1")
	assert.Len(t, drained, 2)
	assert.Equal(t, []byte("2"), drained[0].Payload)
	assert.Equal(t, []byte("3"), drained[1].Payload)
}

func TestDiscard(t *testing.T) {
	q := NewMemoryQueue(10)
	q.Push("c1", &message.ApplicationMessage{Payload: []byte("1")})
	q.Discard("c1")
	assert.Equal(t, 0, q.Len("c1"))
}
