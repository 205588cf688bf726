package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAddRemove(t *testing.T) {
	s := NewSet()
	assert.True(t, s.Add("a/+", 1))
	assert.False(t, s.Add("a/+", 2)) // update, not new
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Remove("a/+"))
	assert.False(t, s.Remove("a/+"))
}

func TestSetMatchFirstOnlyOneHit(t *testing.T) {
	s := NewSet()
	s.Add("a/#", 2)
	s.Add("a/b", 1)
	entry, ok := s.MatchFirst("a/b")
	assert.True(t, ok)
	assert.Contains(t, []string{"a/#", "a/b"}, entry.Filter)
}

func TestSetRestore(t *testing.T) {
	s := NewSet()
	s.Add("old", 0)
	s.Restore([]Entry{{Filter: "new", GrantedQoS: 2}})
	assert.Equal(t, 1, s.Len())
	_, ok := s.MatchFirst("new")
	assert.True(t, ok)
	_, ok = s.MatchFirst("old")
	assert.False(t, ok)
}
