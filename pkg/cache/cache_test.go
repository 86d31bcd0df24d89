package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/nntpcore/pkg/nntp"
)

func entry(n uint64) nntp.XoverEntry {
	return nntp.XoverEntry{Number: n, Subject: "s"}
}

func TestNewLruHeaderCache_RejectsZeroCapacity(t *testing.T) {
	_, err := NewLruHeaderCache(0)
	assert.Error(t, err)
}

func TestLruHeaderCache_EvictsLeastRecentlyTouched(t *testing.T) {
	c, err := NewLruHeaderCache(2)
	require.NoError(t, err)

	c.Put(1, entry(1))
	c.Put(2, entry(2))
	c.Put(3, entry(3)) // evicts 1, the least recently touched

	assert.False(t, c.Contains(1))
	assert.True(t, c.Contains(2))
	assert.True(t, c.Contains(3))
	assert.Equal(t, 2, c.Len())
}

func TestLruHeaderCache_GetTouchesEntry(t *testing.T) {
	c, err := NewLruHeaderCache(2)
	require.NoError(t, err)

	c.Put(1, entry(1))
	c.Put(2, entry(2))

	_, ok := c.Get(1) // touch 1, making 2 the least recently used
	require.True(t, ok)

	c.Put(3, entry(3)) // evicts 2, not 1

	assert.True(t, c.Contains(1))
	assert.False(t, c.Contains(2))
	assert.True(t, c.Contains(3))
}

func TestLruHeaderCache_RemoveAndClear(t *testing.T) {
	c, err := NewLruHeaderCache(3)
	require.NoError(t, err)

	c.Put(1, entry(1))
	c.Put(2, entry(2))

	assert.True(t, c.Remove(1))
	assert.False(t, c.Remove(1))
	assert.False(t, c.Contains(1))

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 3, c.Capacity())
}

func TestLruHeaderCache_SequentialPutsNoGets(t *testing.T) {
	const capacity = 3
	c, err := NewLruHeaderCache(capacity)
	require.NoError(t, err)

	for i := uint64(1); i <= 10; i++ {
		c.Put(i, entry(i))
	}

	assert.Equal(t, capacity, c.Len())
	for i := uint64(8); i <= 10; i++ {
		assert.True(t, c.Contains(i))
	}
	assert.False(t, c.Contains(7))
}
