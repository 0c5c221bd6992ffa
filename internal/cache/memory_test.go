package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemory(time.Minute, 10, clock.now)

	_, ok, err := c.Get(ctx, "room-1")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte("payload")
	require.NoError(t, c.Set(ctx, "room-1", value))
	value[0] = 'X'

	got, ok, err := c.Get(ctx, "room-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	got[0] = 'Y'
	again, _, _ := c.Get(ctx, "room-1")
	assert.Equal(t, []byte("payload"), again)

	require.NoError(t, c.Delete(ctx, "room-1"))
	_, ok, _ = c.Get(ctx, "room-1")
	assert.False(t, ok)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemory(30*time.Second, 10, clock.now)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))

	clock.t = clock.t.Add(30 * time.Second)
	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok, "entry is valid up to its expiry instant")

	clock.t = clock.t.Add(time.Nanosecond)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemory_EvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemory(time.Minute, 3, clock.now)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v")))
		clock.t = clock.t.Add(time.Second)
	}
	require.NoError(t, c.Set(ctx, "k3", []byte("v")))

	assert.Equal(t, 3, c.Len())
	_, ok, _ := c.Get(ctx, "k0")
	assert.False(t, ok, "the oldest entry is evicted first")
	_, ok, _ = c.Get(ctx, "k3")
	assert.True(t, ok)

	// overwriting an existing key never evicts
	require.NoError(t, c.Set(ctx, "k3", []byte("w")))
	assert.Equal(t, 3, c.Len())
}

func TestNoop(t *testing.T) {
	var store Store = Noop{}
	require.NoError(t, store.Set(context.Background(), "k", []byte("v")))
	_, ok, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_Generations(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(time.Second, 1, func() time.Time { return now })
	ctx := context.Background()

	gen, err := c.Generation(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	for want := int64(1); want <= 3; want++ {
		gen, err = c.Bump(ctx, "g")
		require.NoError(t, err)
		assert.Equal(t, want, gen)
	}

	// neither expiry nor value eviction touches counters
	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))
	now = now.Add(time.Hour)
	gen, err = c.Generation(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, int64(3), gen)
	assert.Equal(t, 1, c.Len())
}

func TestNoop_Generations(t *testing.T) {
	var store Store = Noop{}
	gen, err := store.Bump(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)
}
