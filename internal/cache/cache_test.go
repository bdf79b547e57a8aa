package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGetRoundTrip(t *testing.T) {
	c := New(16)
	c.Set("k1", []byte("v1"))

	v, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_SetOverwritesExistingKey(t *testing.T) {
	c := New(16)
	c.Set("k1", "first")
	c.Set("k1", "second")

	v, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestCache_Del(t *testing.T) {
	c := New(16)
	c.Set("k1", "v1")
	c.Del("k1")

	_, ok := c.Get("k1")
	assert.False(t, ok)
}

// A cache far smaller than the working set must keep serving gets
// without panicking as the window/segmented-LRU tiers evict and admit.
func TestCache_EvictsUnderPressureWithoutPanicking(t *testing.T) {
	c := New(8)
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("key-%d", i)
		c.Set(key, i)
		c.Get(key)
	}
}

func TestBlockKey_DeterministicPerFileOffset(t *testing.T) {
	a := BlockKey(1, 100)
	b := BlockKey(1, 100)
	c := BlockKey(1, 200)
	d := BlockKey(2, 100)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}
