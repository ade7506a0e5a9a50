// ABOUTME: Tests for the seen-identifier set
// ABOUTME: Verifies at-most-once marking, capacity eviction, and reset

package dedupe

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndMark(t *testing.T) {
	s := New(10)

	assert.False(t, s.CheckAndMark("m1"), "first sighting is not a duplicate")
	assert.True(t, s.CheckAndMark("m1"), "second sighting is a duplicate")
	assert.True(t, s.CheckAndMark("m1"), "still a duplicate on every later sighting")

	assert.False(t, s.CheckAndMark("m2"))
	assert.Equal(t, 2, s.Len())
}

func TestEvictionAtCapacity(t *testing.T) {
	s := New(3)

	for i := 0; i < 3; i++ {
		s.CheckAndMark(fmt.Sprintf("m%d", i))
	}
	assert.Equal(t, 3, s.Len())

	// Adding a fourth evicts the oldest
	assert.False(t, s.CheckAndMark("m3"))
	assert.Equal(t, 3, s.Len())
	assert.False(t, s.CheckAndMark("m0"), "evicted identifier is forgotten")
}

func TestReset(t *testing.T) {
	s := New(10)
	s.CheckAndMark("m1")
	s.CheckAndMark("m2")

	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.False(t, s.CheckAndMark("m1"))
}

func TestDefaultCapacity(t *testing.T) {
	s := New(0)
	for i := 0; i < DefaultCapacity; i++ {
		assert.False(t, s.CheckAndMark(fmt.Sprintf("m%d", i)))
	}
	assert.Equal(t, DefaultCapacity, s.Len())
}
