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

package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStableForSameInput(t *testing.T) {
	a := Fingerprint("node-1", "a/b", []byte("payload"), 42)
	b := Fingerprint("node-1", "a/b", []byte("payload"), 42)
	assert.Equal(t, a, b)
}

func TestFingerprintDiffersOnAnyField(t *testing.T) {
	base := Fingerprint("node-1", "a/b", []byte("payload"), 42)
	assert.NotEqual(t, base, Fingerprint("node-2", "a/b", []byte("payload"), 42))
	assert.NotEqual(t, base, Fingerprint("node-1", "a/c", []byte("payload"), 42))
	assert.NotEqual(t, base, Fingerprint("node-1", "a/b", []byte("other"), 42))
	assert.NotEqual(t, base, Fingerprint("node-1", "a/b", []byte("payload"), 43))
}

func TestMessageIDCacheSeenOrMark(t *testing.T) {
	c := NewMessageIDCache(time.Minute)
	fp := Fingerprint("node-1", "a/b", []byte("x"), 1)

	assert.False(t, c.SeenOrMark(fp), "first sighting should not be reported as seen")
	assert.True(t, c.SeenOrMark(fp), "second sighting of the same fingerprint is a dup")
	assert.Equal(t, 1, c.Len())
}

func TestMessageIDCacheSweepExpires(t *testing.T) {
	c := NewMessageIDCache(time.Millisecond)
	fp := Fingerprint("node-1", "a/b", []byte("x"), 1)
	c.SeenOrMark(fp)

	c.Sweep(time.Now().Add(time.Hour))
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.SeenOrMark(fp), "expired fingerprint should be treated as novel again")
}
