package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutGetDelete(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Put("c1", []Entry{{Filter: "a/b", GrantedQoS: 1}}))
	entries, err := s.Get("c1")
	assert.NoError(t, err)
	assert.Equal(t, []Entry{{Filter: "a/b", GrantedQoS: 1}}, entries)

	assert.NoError(t, s.Delete("c1"))
	entries, _ = s.Get("c1")
	assert.Nil(t, entries)
}
