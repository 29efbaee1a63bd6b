package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/prize-competition/internal/clock"
)

func newTestMemory(t *testing.T) (*Memory, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewMemory(clk)
	t.Cleanup(func() { _ = m.Close() })
	return m, clk
}

func TestMemoryGetSet(t *testing.T) {
	m, clk := newTestMemory(t)
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)

	clk.Advance(time.Minute + time.Second)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire after its TTL")
}

func TestMemorySetNoExpiry(t *testing.T) {
	m, clk := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	clk.Advance(24 * time.Hour)
	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "zero TTL means no expiry")

	ttl, err := m.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttl)
}

func TestMemorySetNX(t *testing.T) {
	m, clk := newTestMemory(t)
	ctx := context.Background()

	created, err := m.SetNX(ctx, "lock", "alice", time.Minute)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = m.SetNX(ctx, "lock", "bob", time.Minute)
	require.NoError(t, err)
	assert.False(t, created, "second SetNX on a live key must fail")

	v, _, err := m.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, "alice", v, "losing SetNX must not overwrite the value")

	clk.Advance(2 * time.Minute)
	created, err = m.SetNX(ctx, "lock", "bob", time.Minute)
	require.NoError(t, err)
	assert.True(t, created, "SetNX succeeds again once the key expired")
}

func TestMemorySetNXConcurrent(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			created, err := m.SetNX(ctx, "contested", fmt.Sprintf("g%d", id), time.Minute)
			assert.NoError(t, err)
			if created {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, winners, "exactly one goroutine may win the SetNX")
}

func TestMemoryIncrPreservesExpiry(t *testing.T) {
	m, clk := newTestMemory(t)
	ctx := context.Background()

	n, err := m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, m.Expire(ctx, "counter", time.Minute))

	n, err = m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ttl, err := m.TTL(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl, "Incr must not discard the expiry")

	clk.Advance(2 * time.Minute)
	n, err = m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "counter restarts once expired")
}

func TestMemoryExistsAndDelete(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", "1", 0))
	require.NoError(t, m.Set(ctx, "b", "2", 0))

	ok, err := m.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Delete(ctx, "a", "b", "never-existed"))

	ok, err = m.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryScanPagination(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	for i := 1; i <= 25; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("ticket-lock:7:%d", i), "u", 0))
	}
	require.NoError(t, m.Set(ctx, "reservation:7:1", "x", 0))

	var all []string
	var cursor uint64
	pages := 0
	for {
		keys, next, err := m.Scan(ctx, cursor, "ticket-lock:7:*", 10)
		require.NoError(t, err)
		all = append(all, keys...)
		pages++
		if next == 0 {
			break
		}
		cursor = next
	}
	assert.Len(t, all, 25)
	assert.Equal(t, 3, pages)
	assert.NotContains(t, all, "reservation:7:1")
}

func TestMemoryScanSkipsExpired(t *testing.T) {
	m, clk := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "ticket-lock:1:1", "u", time.Minute))
	require.NoError(t, m.Set(ctx, "ticket-lock:1:2", "u", time.Hour))
	clk.Advance(2 * time.Minute)

	keys, next, err := m.Scan(ctx, 0, "ticket-lock:1:*", 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), next)
	assert.Equal(t, []string{"ticket-lock:1:2"}, keys)
}

func TestMemoryPipeline(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "old", "x", 0))

	pipe := m.Pipeline()
	pipe.Set("a", "1", time.Minute)
	pipe.SetNX("old", "overwritten", 0)
	pipe.SetNX("fresh", "2", 0)
	pipe.Delete("old")
	require.NoError(t, pipe.Exec(ctx))

	v, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok, err = m.Get(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", v)

	_, ok, err = m.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok, "delete queued after SetNX must win")
}

func TestMemoryTTLReporting(t *testing.T) {
	m, clk := newTestMemory(t)
	ctx := context.Background()

	ttl, err := m.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttl)

	require.NoError(t, m.Set(ctx, "k", "v", 10*time.Minute))
	clk.Advance(4 * time.Minute)
	ttl, err = m.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 6*time.Minute, ttl)
}
