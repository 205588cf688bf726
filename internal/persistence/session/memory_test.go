package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPutGetDelete(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Put(&Record{ClientID: "c1", NextPacketID: 5}))
	rec, ok, err := s.Get("c1")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 5, rec.NextPacketID)

	assert.NoError(t, s.Delete("c1"))
	_, ok, _ = s.Get("c1")
	assert.False(t, ok)
}

func TestExpired(t *testing.T) {
	s := NewMemoryStore()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	_ = s.Put(&Record{ClientID: "old", ExpiryDeadline: past})
	_ = s.Put(&Record{ClientID: "fresh", ExpiryDeadline: future})
	_ = s.Put(&Record{ClientID: "forever"})

	ids, err := s.Expired(time.Now())
	assert.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids)
}
